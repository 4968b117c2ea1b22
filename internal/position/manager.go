package position

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"momentum-core/internal/events"
	"momentum-core/internal/learning"
	"momentum-core/internal/order"
	"momentum-core/internal/risk"
	"momentum-core/internal/signal"
	"momentum-core/pkg/db"
)

// Config tunes the entry and exit machinery.
type Config struct {
	Tranches          int           // staged entry slices per position
	TrancheInterval   time.Duration // wait between tranches
	TrancheTimeout    time.Duration // per-tranche execution deadline
	TrendCheckTimeout time.Duration // take-profit confirmation deadline
	ExitMaxAttempts   int           // sell retries before escalation
	ExitBackoff       time.Duration // initial exit retry backoff, doubles
}

// DefaultConfig mirrors the production tuning: ten tranches a minute apart.
func DefaultConfig() Config {
	return Config{
		Tranches:          10,
		TrancheInterval:   60 * time.Second,
		TrancheTimeout:    10 * time.Second,
		TrendCheckTimeout: 5 * time.Second,
		ExitMaxAttempts:   5,
		ExitBackoff:       time.Second,
	}
}

// actor is the mailbox for one live position's goroutine. Prices keep only
// the freshest value; exits must not be lost.
type actor struct {
	prices chan float64
	exits  chan string
}

// Manager owns every live position. Each position runs on its own goroutine
// so per-ticker state has a single writer; the manager routes bus traffic to
// the right mailbox and guards admission through the risk manager.
type Manager struct {
	bus     *events.Bus
	exec    *order.Executor
	risk    *risk.Manager
	queries *db.Queries // optional

	cfg Config

	mu     sync.Mutex
	actors map[string]*actor    // by ticker
	live   map[string]*Position // by ticker, owning goroutine writes
	wg     sync.WaitGroup
}

// NewManager wires a position manager. queries may be nil (tests).
func NewManager(bus *events.Bus, exec *order.Executor, riskMgr *risk.Manager, queries *db.Queries, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Tranches <= 0 {
		cfg.Tranches = def.Tranches
	}
	if cfg.TrancheInterval <= 0 {
		cfg.TrancheInterval = def.TrancheInterval
	}
	if cfg.TrancheTimeout <= 0 {
		cfg.TrancheTimeout = def.TrancheTimeout
	}
	if cfg.TrendCheckTimeout <= 0 {
		cfg.TrendCheckTimeout = def.TrendCheckTimeout
	}
	if cfg.ExitMaxAttempts <= 0 {
		cfg.ExitMaxAttempts = def.ExitMaxAttempts
	}
	if cfg.ExitBackoff <= 0 {
		cfg.ExitBackoff = def.ExitBackoff
	}
	return &Manager{
		bus:     bus,
		exec:    exec,
		risk:    riskMgr,
		queries: queries,
		cfg:     cfg,
		actors:  make(map[string]*actor),
		live:    make(map[string]*Position),
	}
}

// Run consumes signals and price ticks until ctx is cancelled, then waits
// for position goroutines to wind down.
func (m *Manager) Run(ctx context.Context) {
	signals, unsubS := m.bus.Subscribe(events.TopicSignal, 64)
	ticks, unsubT := m.bus.Subscribe(events.TopicPriceTick, 256)
	defer unsubS()
	defer unsubT()

	log.Printf("[POSITION] manager started (tranches=%d interval=%s)", m.cfg.Tranches, m.cfg.TrancheInterval)
	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			return
		case msg := <-signals:
			if sig, ok := msg.(signal.Signal); ok {
				m.handleSignal(ctx, sig)
			}
		case msg := <-ticks:
			if t, ok := msg.(events.PriceTick); ok {
				m.routePrice(t)
			}
		}
	}
}

func (m *Manager) handleSignal(ctx context.Context, sig signal.Signal) {
	switch sig.Kind {
	case signal.KindBuy:
		m.open(ctx, sig)
	case signal.KindSell:
		m.requestExit(sig.Ticker, ExitTrendReversal)
	}
}

// open admits and launches a new position. Admission failures are dropped
// candidates, logged and forgotten.
func (m *Manager) open(ctx context.Context, sig signal.Signal) {
	limits := m.risk.Limits()
	res, err := m.risk.Admit(sig.Ticker, limits.PositionSize)
	if err != nil {
		log.Printf("[POSITION] drop %s: %v", sig.Ticker, err)
		return
	}

	pos := &Position{
		ID:              uuid.NewString(),
		Ticker:          sig.Ticker,
		Status:          StatusInitiating,
		SignalID:        sig.ID,
		OpenedAt:        time.Now(),
		entryConfidence: sig.Confidence,
		entryChangePct:  sig.ChangePct,
		entrySnapshot:   sig.Snapshot,
	}

	if m.queries != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := m.queries.InsertPosition(dbCtx, db.Position{
			ID: pos.ID, Ticker: pos.Ticker, Status: pos.Status,
			SignalID: pos.SignalID, OpenedAt: pos.OpenedAt,
		})
		cancel()
		if err != nil {
			// The partial unique index also rejects a duplicate open
			// ticker here, backstopping the in-memory admission check.
			log.Printf("[POSITION] insert %s: %v", pos.Ticker, err)
			m.risk.Refund(res, res.Amount)
			m.risk.Release(pos.Ticker)
			return
		}
	}

	a := &actor{
		prices: make(chan float64, 1),
		exits:  make(chan string, 4),
	}
	m.mu.Lock()
	m.actors[sig.Ticker] = a
	m.live[sig.Ticker] = pos
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runPosition(ctx, pos, a, res, sig.Price)
	}()
}

// routePrice forwards the freshest price to the owning goroutine, replacing
// any stale unread value.
func (m *Manager) routePrice(t events.PriceTick) {
	m.mu.Lock()
	a := m.actors[t.Ticker]
	m.mu.Unlock()
	if a == nil {
		return
	}
	for {
		select {
		case a.prices <- t.Price:
			return
		default:
			select {
			case <-a.prices:
			default:
			}
		}
	}
}

// requestExit asks a live position to close. No-op when the ticker has none.
func (m *Manager) requestExit(ticker, reason string) {
	m.mu.Lock()
	a := m.actors[ticker]
	m.mu.Unlock()
	if a == nil {
		return
	}
	select {
	case a.exits <- reason:
	default:
		// An exit is already queued; one is enough.
	}
}

// EmergencyLiquidate halts admissions and closes every live position.
func (m *Manager) EmergencyLiquidate(reason string) {
	m.risk.Halt(reason)
	m.mu.Lock()
	tickers := make([]string, 0, len(m.actors))
	for t := range m.actors {
		tickers = append(tickers, t)
	}
	m.mu.Unlock()

	log.Printf("[POSITION] emergency liquidation (%s): %d positions", reason, len(tickers))
	m.bus.Publish(events.TopicRiskAlert, "emergency liquidation: "+reason)
	for _, t := range tickers {
		m.requestExit(t, ExitRiskHalt)
	}
}

// Open returns copies of the live positions.
func (m *Manager) Open() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.live))
	for _, p := range m.live {
		out = append(out, *p)
	}
	return out
}

// runPosition owns one position from first tranche to close.
func (m *Manager) runPosition(ctx context.Context, pos *Position, a *actor, res risk.Reservation, refPrice float64) {
	exitReason := m.enter(ctx, pos, a, res, refPrice)

	if pos.Quantity <= 0 {
		// Nothing ever filled; release without a trade.
		log.Printf("[POSITION] %s abandoned, no tranches filled", pos.Ticker)
		m.risk.Refund(res, res.Amount)
		m.finalize(ctx, pos, refPrice)
		return
	}

	// Return whatever budget the skipped tranches never spent.
	m.risk.Refund(res, res.Amount-pos.Invested)

	if exitReason == "" {
		exitReason = m.watch(ctx, pos, a)
	}
	m.exit(ctx, pos, exitReason)
}

// enter runs the staged tranche loop. Returns a non-empty exit reason when
// an exit condition fired before the entry completed.
func (m *Manager) enter(ctx context.Context, pos *Position, a *actor, res risk.Reservation, refPrice float64) string {
	trancheCash := res.Amount / float64(m.cfg.Tranches)
	lastPrice := refPrice

	for i := 0; i < m.cfg.Tranches; i++ {
		if i > 0 {
			reason, price := m.waitInterval(ctx, a, pos, lastPrice)
			if price > 0 {
				lastPrice = price
			}
			if reason != "" {
				return reason
			}
			if ctx.Err() != nil {
				return ExitRiskHalt
			}
		}

		if lastPrice <= 0 {
			continue
		}
		qty := trancheCash / lastPrice
		in := order.Intent{
			ID:         uuid.NewString(),
			PositionID: pos.ID,
			Ticker:     pos.Ticker,
			Side:       order.SideBuy,
			Qty:        qty,
			Price:      lastPrice,
			Tranche:    i + 1,
			CreatedAt:  time.Now(),
		}
		execCtx, cancel := context.WithTimeout(ctx, m.cfg.TrancheTimeout)
		fill, err := m.exec.Execute(execCtx, in)
		cancel()
		if err != nil {
			// Executor already retried once; this tranche is skipped.
			log.Printf("[POSITION] %s tranche %d skipped: %v", pos.Ticker, i+1, err)
			continue
		}

		pos.applyFill(fill.Qty, fill.Price, fill.Commission)
		m.recordFill(ctx, pos, in, fill)
		m.persist(ctx, pos)
		log.Printf("[POSITION] %s tranche %d/%d filled qty=%.4f price=%.2f avg=%.2f",
			pos.Ticker, i+1, m.cfg.Tranches, fill.Qty, fill.Price, pos.AvgPrice)
	}

	// Every tranche has been attempted; a partial fill is still an open
	// position.
	if pos.Quantity > 0 {
		pos.Status = StatusOpen
		m.persist(ctx, pos)
		m.announce(ctx, events.TopicPositionOpened, pos, "")
	}
	return ""
}

// waitInterval sleeps out the tranche gap while still honoring price-driven
// exits and explicit exit requests. Returns the exit reason (or "") and the
// last price seen.
func (m *Manager) waitInterval(ctx context.Context, a *actor, pos *Position, lastPrice float64) (string, float64) {
	timer := time.NewTimer(m.cfg.TrancheInterval)
	defer timer.Stop()
	price := lastPrice
	for {
		select {
		case <-ctx.Done():
			return "", price
		case <-timer.C:
			return "", price
		case reason := <-a.exits:
			return reason, price
		case p := <-a.prices:
			price = p
			if reason := m.checkPrice(pos, p); reason != "" {
				if reason == ExitTakeProfit && m.trendStillUp(ctx, pos.Ticker) {
					// Same gate as watch(); a running trend keeps the
					// remaining tranches coming.
					continue
				}
				return reason, price
			}
		}
	}
}

// watch monitors an open position until an exit condition fires.
func (m *Manager) watch(ctx context.Context, pos *Position, a *actor) string {
	for {
		select {
		case <-ctx.Done():
			return ExitRiskHalt
		case reason := <-a.exits:
			return reason
		case price := <-a.prices:
			if reason := m.checkPrice(pos, price); reason != "" {
				if reason == ExitTakeProfit && m.trendStillUp(ctx, pos.Ticker) {
					// Ride the trend; keep watching.
					continue
				}
				return reason
			}
		}
	}
}

// checkPrice updates excursion stats and returns an exit reason when the
// stop-loss or take-profit level is crossed.
func (m *Manager) checkPrice(pos *Position, price float64) string {
	if pos.Quantity <= 0 {
		return ""
	}
	ret := pos.ReturnPct(price)
	if ret < pos.MaxDrawdownPct {
		pos.MaxDrawdownPct = ret
	}
	if ret > pos.MaxProfitPct {
		pos.MaxProfitPct = ret
	}

	limits := m.risk.Limits()
	if ret <= limits.StopLossPct {
		return ExitStopLoss
	}
	if ret >= limits.TakeProfitPct {
		return ExitTakeProfit
	}
	return ""
}

// trendStillUp asks the signal generator whether the trend is still UP.
// Timeout or any non-UP answer means exit; holding through silence is how
// winners turn into losers.
func (m *Manager) trendStillUp(ctx context.Context, ticker string) bool {
	reply := make(chan string, 1)
	m.bus.Publish(events.TopicTrendCheck, events.TrendCheck{Ticker: ticker, Reply: reply})

	timer := time.NewTimer(m.cfg.TrendCheckTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	case trend := <-reply:
		return trend == signal.TrendUp
	}
}

// exit sells the full quantity with exponential backoff, then finalizes.
func (m *Manager) exit(ctx context.Context, pos *Position, reason string) {
	pos.Status = StatusExitPending
	pos.ExitReason = reason
	m.persist(ctx, pos)
	log.Printf("[POSITION] %s exiting (%s) qty=%.4f avg=%.2f", pos.Ticker, reason, pos.Quantity, pos.AvgPrice)

	in := order.Intent{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Ticker:     pos.Ticker,
		Side:       order.SideSell,
		Qty:        pos.Quantity,
		Price:      pos.AvgPrice,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}

	backoff := m.cfg.ExitBackoff
	for attempt := 1; ; attempt++ {
		execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.TrancheTimeout)
		fill, err := m.exec.Execute(execCtx, in)
		cancel()
		if err == nil {
			pos.ExitPrice = fill.Price
			m.recordFill(ctx, pos, in, fill)
			m.finalize(ctx, pos, fill.Price)
			return
		}

		log.Printf("[POSITION] %s exit attempt %d failed: %v", pos.Ticker, attempt, err)
		if attempt >= m.cfg.ExitMaxAttempts {
			// Out of retries with money still on the table. Escalate and
			// keep trying at the capped backoff; a human is now in the loop.
			m.bus.Publish(events.TopicRiskAlert,
				"exit failing for "+pos.Ticker+" after retries: "+err.Error())
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			// Shutdown with an unsold position; the WAL entry survives for
			// the next start.
			m.persist(ctx, pos)
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// finalize records the trade, frees the slot and announces the close.
func (m *Manager) finalize(ctx context.Context, pos *Position, exitPrice float64) {
	now := time.Now()
	pos.Status = StatusClosed
	pos.ClosedAt = now
	if pos.ExitPrice == 0 {
		pos.ExitPrice = exitPrice
	}

	m.mu.Lock()
	delete(m.actors, pos.Ticker)
	delete(m.live, pos.Ticker)
	m.mu.Unlock()
	m.risk.Release(pos.Ticker)

	m.persist(ctx, pos)

	if pos.Quantity > 0 {
		m.recordTrade(ctx, pos, now)
	}
	m.announce(ctx, events.TopicPositionClosed, pos, pos.ExitReason)
	log.Printf("[POSITION] %s closed (%s) return=%.2f%%", pos.Ticker, pos.ExitReason, pos.ReturnPct(pos.ExitPrice))
}

// recordFill appends one immutable fill row. Slippage is the signed gap
// between the price we asked for and the price we got.
func (m *Manager) recordFill(ctx context.Context, pos *Position, in order.Intent, fill order.Fill) {
	if m.queries == nil {
		return
	}
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	err := m.queries.InsertFill(dbCtx, db.Fill{
		ID:          in.ID,
		PositionID:  pos.ID,
		Ticker:      pos.Ticker,
		Side:        in.Side,
		Quantity:    fill.Qty,
		OrderPrice:  in.Price,
		FilledPrice: fill.Price,
		Slippage:    fill.Price - in.Price,
		Commission:  fill.Commission,
		SplitIndex:  in.Tranche,
		FilledAt:    fill.FilledAt,
	})
	if err != nil {
		log.Printf("[POSITION] record fill %s: %v", pos.Ticker, err)
	}
}

func (m *Manager) recordTrade(ctx context.Context, pos *Position, now time.Time) {
	if m.queries == nil {
		return
	}
	ret := pos.ReturnPct(pos.ExitPrice)
	outcome := learning.OutcomeLoss
	if ret > 0 {
		outcome = learning.OutcomeWin
	}
	snapJSON, _ := json.Marshal(pos.entrySnapshot)

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := m.queries.InsertTrade(dbCtx, db.Trade{
		ID:            uuid.NewString(),
		PositionID:    pos.ID,
		Ticker:        pos.Ticker,
		EntryPrice:    pos.AvgPrice,
		ExitPrice:     pos.ExitPrice,
		Quantity:      pos.Quantity,
		ReturnPct:     ret,
		Outcome:       outcome,
		ExitReason:    pos.ExitReason,
		Confidence:    pos.entryConfidence,
		ChangePct:     pos.entryChangePct,
		EntrySnapshot: string(snapJSON),
		HoldSeconds:   int64(now.Sub(pos.OpenedAt).Seconds()),
		OpenedAt:      pos.OpenedAt,
		ClosedAt:      now,
	})
	if err != nil {
		log.Printf("[POSITION] record trade %s: %v", pos.Ticker, err)
	}
	// Close the loop on the signal that opened this position.
	if pos.SignalID != "" {
		if err := m.queries.UpdateSignalOutcome(dbCtx, pos.SignalID, outcome, ret); err != nil {
			log.Printf("[POSITION] signal outcome %s: %v", pos.SignalID, err)
		}
	}
	if err := m.queries.BumpTickerStats(dbCtx, pos.Ticker, outcome == learning.OutcomeWin, ret); err != nil {
		log.Printf("[POSITION] ticker stats %s: %v", pos.Ticker, err)
	}
	pnl := (pos.ExitPrice - pos.AvgPrice) * pos.Quantity
	if err := m.queries.AddRiskMetrics(dbCtx, now.Format("2006-01-02"), pnl, ret > 0); err != nil {
		log.Printf("[POSITION] risk metrics: %v", err)
	}
	if err := m.queries.AddDailySpend(dbCtx, pos.OpenedAt.Format("2006-01-02"), pos.Invested); err != nil {
		log.Printf("[POSITION] daily spend: %v", err)
	}
}

// announce publishes a lifecycle event. Closed events block until delivered;
// the learning engine must not miss them.
func (m *Manager) announce(ctx context.Context, topic events.Topic, pos *Position, exitReason string) {
	ev := events.PositionEvent{
		PositionID: pos.ID,
		Ticker:     pos.Ticker,
		Status:     pos.Status,
		ExitReason: exitReason,
		ReturnPct:  pos.ReturnPct(pos.ExitPrice),
	}
	if topic == events.TopicPositionClosed {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := m.bus.PublishWait(pubCtx, topic, ev); err != nil {
			log.Printf("[POSITION] publish close %s: %v", pos.Ticker, err)
		}
		return
	}
	m.bus.Publish(topic, ev)
}

func (m *Manager) persist(ctx context.Context, pos *Position) {
	if m.queries == nil {
		return
	}
	rec := db.Position{
		ID:             pos.ID,
		Ticker:         pos.Ticker,
		Status:         pos.Status,
		Quantity:       pos.Quantity,
		AvgPrice:       pos.AvgPrice,
		Invested:       pos.Invested,
		TranchesFilled: pos.TranchesFilled,
		SignalID:       pos.SignalID,
		ExitReason:     pos.ExitReason,
		ExitPrice:      pos.ExitPrice,
		MaxDrawdownPct: pos.MaxDrawdownPct,
		MaxProfitPct:   pos.MaxProfitPct,
		OpenedAt:       pos.OpenedAt,
	}
	if !pos.ClosedAt.IsZero() {
		t := pos.ClosedAt
		rec.ClosedAt = &t
	}
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := m.queries.UpdatePosition(dbCtx, rec); err != nil {
		log.Printf("[POSITION] persist %s: %v", pos.Ticker, err)
	}
}
