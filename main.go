package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"momentum-core/internal/api"
	"momentum-core/internal/events"
	"momentum-core/internal/indicators"
	"momentum-core/internal/learning"
	"momentum-core/internal/market"
	"momentum-core/internal/monitor"
	"momentum-core/internal/order"
	"momentum-core/internal/position"
	"momentum-core/internal/risk"
	"momentum-core/internal/signal"
	"momentum-core/pkg/broker"
	"momentum-core/pkg/config"
	"momentum-core/pkg/db"
)

var buildVersion = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	params, err := config.LoadParams(cfg.ParamsPath)
	if err != nil {
		log.Fatalf("load params: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database.DB); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	queries := db.NewQueries(database.DB)
	log.Printf("database ready at %s", cfg.DBPath)

	// Event bus
	bus := events.NewBus()

	// Learning store and engine; restore persisted state before any signal
	// is scored.
	store := learning.NewStore(nil, nil, learning.Thresholds{})
	learner := learning.NewEngine(bus, store, queries)
	if err := learner.LoadState(ctx); err != nil {
		log.Printf("restore learning state: %v (continuing with defaults)", err)
	}

	// Indicators
	indParams := indicators.Params{
		EMAFast:    params.Indicators.EMAFast,
		EMASlow:    params.Indicators.EMASlow,
		RSIPeriod:  params.Indicators.RSIPeriod,
		MACDFast:   params.Indicators.MACDFast,
		MACDSlow:   params.Indicators.MACDSlow,
		MACDSignal: params.Indicators.MACDSignal,
		BollPeriod: params.Indicators.BollPeriod,
		BollStdDev: params.Indicators.BollStdDev,
	}
	indEngine := indicators.NewEngine(indParams, 200)

	// Risk admission
	riskMgr := risk.NewManager(risk.Limits{
		MaxConcurrent: params.Risk.MaxConcurrent,
		DailyBudget:   params.Risk.DailyBudget,
		PositionSize:  params.Risk.PositionSize,
		StopLossPct:   params.Risk.StopLossPct,
		TakeProfitPct: params.Risk.TakeProfitPct,
	})
	limits := riskMgr.Limits()
	log.Printf("risk limits: max_positions=%d daily_budget=%.0f stop=%.1f%% target=%.1f%%",
		limits.MaxConcurrent, limits.DailyBudget, limits.StopLossPct, limits.TakeProfitPct)

	// Order WAL
	var wal *order.Log
	if cfg.EnableOrderWAL {
		wal, err = order.NewLog(cfg.OrderWALPath)
		if err != nil {
			log.Fatalf("open order WAL: %v", err)
		}
		defer wal.Close()
	}

	// Gateway: paper in dry-run, HTTP broker otherwise.
	var gateway order.Gateway
	var brokerClient *broker.Client
	if cfg.DryRun {
		gateway = order.NewPaperGateway(order.PaperConfig{
			FeeRate:      cfg.DryRunFeeRate,
			SlippageBps:  cfg.DryRunSlippageBps,
			LatencyMinMs: cfg.DryRunGwLatencyMinMs,
			LatencyMaxMs: cfg.DryRunGwLatencyMaxMs,
		})
		log.Printf("DRY RUN: paper gateway (fee=%.4f slippage=%.1fbps)", cfg.DryRunFeeRate, cfg.DryRunSlippageBps)
	} else {
		brokerClient = broker.NewClient(cfg.BrokerURL, cfg.BrokerAPIKey, cfg.BrokerRPS)
		gateway = order.NewBrokerGateway(brokerClient)
		log.Printf("LIVE: broker gateway at %s", cfg.BrokerURL)
	}
	executor := order.NewExecutor(gateway, bus, wal)

	// Position manager
	posMgr := position.NewManager(bus, executor, riskMgr, queries, position.Config{
		Tranches:        params.Entry.Tranches,
		TrancheInterval: time.Duration(params.Entry.TrancheIntervalSec) * time.Second,
	})

	// Finish in-flight exits from a previous run before new signals arrive.
	if wal != nil {
		pending, err := wal.Recover()
		if err != nil {
			log.Printf("order WAL recovery: %v", err)
		} else if len(pending) > 0 {
			executor.ResubmitRecovered(ctx, pending)
		}
	}

	// Signal generator
	generator := signal.NewGenerator(bus, indEngine, store, queries)

	// Alerts
	sinks := []monitor.AlertSink{monitor.LogSink{}}
	if cfg.AlertWebhookURL != "" {
		sinks = append(sinks, monitor.NewWebhookSink(cfg.AlertWebhookURL))
	}
	notifier := monitor.NewNotifier(bus, sinks...)

	go generator.Run(ctx)
	go posMgr.Run(ctx)
	go learner.Run(ctx)
	go notifier.Run(ctx)

	// Broker watchdog: an unreachable gateway while holding positions means
	// liquidate through whatever still answers, then halt.
	if brokerClient != nil {
		watchdog := broker.NewWatchdog(brokerClient)
		watchdog.OnUnreachable = func(failures int) {
			bus.Publish(events.TopicBrokerUnreachable, failures)
			posMgr.EmergencyLiquidate("broker unreachable")
		}
		watchdog.OnRecovered = func() {
			riskMgr.Resume()
		}
		go watchdog.Run(ctx)
	}

	// Market data
	if cfg.UseMockFeed {
		mock := &market.MockFeed{Bus: bus, Tickers: cfg.MockTickers}
		mock.Start(ctx)
		log.Printf("mock feed started for %v", cfg.MockTickers)
	} else {
		feed := &market.Feed{URL: cfg.ScreenerURL, Bus: bus}
		go feed.Run(ctx)
	}

	// API
	server := api.NewServer(bus, database, queries, riskMgr, posMgr, store,
		api.OperatorAuth{User: cfg.OperatorUser, PassHash: cfg.OperatorPassHash},
		api.SystemMeta{
			DryRun:      cfg.DryRun,
			Gateway:     gateway.Name(),
			UseMockFeed: cfg.UseMockFeed,
			Version:     buildVersion,
			StartedAt:   time.Now(),
		},
		cfg.JWTSecret,
	)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()
	log.Printf("momentum core %s listening on :%s", buildVersion, cfg.Port)

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()
	time.Sleep(time.Second)
}
