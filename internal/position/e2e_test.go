package position

import (
	"context"
	"testing"
	"time"

	"momentum-core/internal/events"
	"momentum-core/internal/indicators"
	"momentum-core/internal/learning"
	"momentum-core/internal/order"
	"momentum-core/internal/risk"
	"momentum-core/internal/signal"
	"momentum-core/pkg/db"
)

// TestCandidateToClosedTrade runs the full pipeline against an in-memory
// database: ticks build the indicator window, a screener candidate becomes a
// BUY, the position fills, the price collapses and the stop closes it, and
// the trade lands in storage for the learning engine.
func TestCandidateToClosedTrade(t *testing.T) {
	database, err := db.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database.DB); err != nil {
		t.Fatal(err)
	}
	queries := db.NewQueries(database.DB)

	bus := events.NewBus()
	ind := indicators.NewEngine(indicators.Params{}, 200)
	store := learning.NewStore(nil, nil, learning.Thresholds{})
	gen := signal.NewGenerator(bus, ind, store, queries)

	riskMgr := risk.NewManager(risk.Limits{PositionSize: 1000})
	exec := order.NewExecutor(order.NewPaperGateway(order.PaperConfig{}), bus, nil)
	mgr := NewManager(bus, exec, riskMgr, queries, Config{
		Tranches:        2,
		TrancheInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)
	go mgr.Run(ctx)
	time.Sleep(50 * time.Millisecond) // let both subscribe

	// Build an uptrend window with a closing volume spike.
	price := 100.0
	for i := 0; i < 50; i++ {
		price *= 1.005
		vol := 1000.0
		if i >= 47 {
			vol = 4000
		}
		bus.Publish(events.TopicPriceTick, events.PriceTick{Ticker: "NVDA", Price: price, Volume: vol})
		time.Sleep(time.Millisecond)
	}

	bus.Publish(events.TopicCandidate, events.Candidate{
		Ticker: "NVDA", Price: price, ChangePct: 8, VolumeSpikePct: 350,
	})

	// Wait for the position to open and fill both tranches.
	deadline := time.Now().Add(10 * time.Second)
	var entry Position
	for {
		if time.Now().After(deadline) {
			t.Fatal("position never opened from candidate")
		}
		open := mgr.Open()
		if len(open) == 1 && open[0].TranchesFilled == 2 {
			entry = open[0]
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if entry.Ticker != "NVDA" || entry.AvgPrice <= 0 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	// Collapse the price far past the stop level.
	crash := entry.AvgPrice * 0.80
	for i := 0; i < 200 && len(mgr.Open()) > 0; i++ {
		bus.Publish(events.TopicPriceTick, events.PriceTick{Ticker: "NVDA", Price: crash, Volume: 1000})
		time.Sleep(5 * time.Millisecond)
	}
	if len(mgr.Open()) != 0 {
		t.Fatal("position never closed after crash")
	}

	// The trade record must be in storage for learning passes.
	var trades []db.Trade
	for time.Now().Before(deadline) {
		trades, err = queries.RecentTrades(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(trades) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	trade := trades[0]
	if trade.Outcome != learning.OutcomeLoss {
		t.Errorf("outcome = %s, want LOSS", trade.Outcome)
	}
	if trade.ReturnPct > -15 {
		t.Errorf("return = %.2f%%, want at or below the stop level", trade.ReturnPct)
	}
	if trade.EntrySnapshot == "" {
		t.Error("trade must carry the entry snapshot for learning")
	}

	// The signal that started it was persisted and settled to its realized
	// outcome on close.
	var buySig db.Signal
	for time.Now().Before(deadline) {
		sigs, err := queries.RecentSignals(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range sigs {
			if s.Ticker == "NVDA" && s.Kind == signal.KindBuy {
				buySig = s
			}
		}
		if buySig.Outcome != "" && buySig.Outcome != "PENDING" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if buySig.ID == "" {
		t.Fatal("BUY signal was not persisted")
	}
	if buySig.Outcome != learning.OutcomeLoss {
		t.Errorf("signal outcome = %s, want LOSS", buySig.Outcome)
	}
	if buySig.OutcomePct > -15 {
		t.Errorf("signal outcome pct = %.2f, want at or below the stop level", buySig.OutcomePct)
	}

	// Two entry tranches plus the exit, each as its own immutable fill.
	fills, err := queries.FillsForPosition(ctx, entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fills) != 3 {
		t.Fatalf("got %d fills, want 2 entries + 1 exit", len(fills))
	}
	if fills[0].Side != order.SideBuy || fills[1].Side != order.SideBuy || fills[2].Side != order.SideSell {
		t.Errorf("fill sides = %s,%s,%s, want BUY,BUY,SELL", fills[0].Side, fills[1].Side, fills[2].Side)
	}
	if fills[0].SplitIndex != 1 || fills[1].SplitIndex != 2 {
		t.Errorf("entry split indexes = %d,%d, want 1,2", fills[0].SplitIndex, fills[1].SplitIndex)
	}
	for _, f := range fills {
		if f.Slippage != f.FilledPrice-f.OrderPrice {
			t.Errorf("fill %s slippage = %v, want filled minus ordered", f.ID, f.Slippage)
		}
	}

	// Closed position row with the exit reason recorded.
	rows, err := queries.RecentPositions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != StatusClosed {
		t.Fatalf("position rows = %+v, want one CLOSED", rows)
	}
}
