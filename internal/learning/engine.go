package learning

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"momentum-core/internal/events"
	"momentum-core/internal/indicators"
	"momentum-core/pkg/db"
)

// Engine drives the learning loop: it watches closed positions and, on a
// cadence, replays recent trade history through the pure reweighting,
// mining and threshold passes, publishing each new parameter version.
type Engine struct {
	bus     *events.Bus
	store   *Store
	queries *db.Queries

	// Reweight after this many closes, or on the timer, whichever first.
	closesPerPass int
	passInterval  time.Duration
}

// NewEngine wires a learning engine.
func NewEngine(bus *events.Bus, store *Store, queries *db.Queries) *Engine {
	return &Engine{
		bus:           bus,
		store:         store,
		queries:       queries,
		closesPerPass: 10,
		passInterval:  15 * time.Minute,
	}
}

// LoadState restores persisted weights and patterns into the store. Called
// once on startup, before any signal is scored.
func (e *Engine) LoadState(ctx context.Context) error {
	rec, err := e.queries.LatestWeights(ctx)
	switch {
	case errors.Is(err, db.ErrNotFound):
		// Fresh database; defaults stand.
	case err != nil:
		return err
	default:
		var w Weights
		if jerr := json.Unmarshal([]byte(rec.Weights), &w); jerr != nil {
			log.Printf("[LEARN] stored weights unreadable, keeping defaults: %v", jerr)
		} else if _, ok := e.store.SetWeights(w.Normalize()); ok {
			log.Printf("[LEARN] restored weights version %d", rec.Version)
		}
	}

	rows, err := e.queries.ListPatterns(ctx)
	if err != nil {
		return err
	}
	var patterns []Pattern
	for _, row := range rows {
		var conds []Condition
		if err := json.Unmarshal([]byte(row.Conditions), &conds); err != nil {
			log.Printf("[LEARN] pattern %s unreadable, skipping: %v", row.Name, err)
			continue
		}
		patterns = append(patterns, Pattern{
			ID:           row.ID,
			Name:         row.Name,
			Conditions:   conds,
			WinRate:      row.WinRate,
			AvgReturn:    row.AvgReturn,
			SampleSize:   row.SampleSize,
			Active:       row.IsActive,
			DiscoveredAt: row.DiscoveredAt,
			ValidatedAt:  row.ValidatedAt,
		})
	}
	if len(patterns) > 0 {
		e.store.SetPatterns(patterns)
		log.Printf("[LEARN] restored %d patterns", len(patterns))
	}
	return nil
}

// Run consumes close events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	closed, unsub := e.bus.Subscribe(events.TopicPositionClosed, 32)
	defer unsub()

	ticker := time.NewTicker(e.passInterval)
	defer ticker.Stop()

	log.Printf("[LEARN] engine started (pass every %d closes or %s)", e.closesPerPass, e.passInterval)
	closes := 0
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-closed:
			if _, ok := msg.(events.PositionEvent); !ok {
				continue
			}
			closes++
			if closes >= e.closesPerPass {
				closes = 0
				e.Pass(ctx)
			}
		case <-ticker.C:
			closes = 0
			e.Pass(ctx)
		}
	}
}

// Pass runs one full learning pass over recent trade history.
func (e *Engine) Pass(ctx context.Context) {
	trades, err := e.loadTrades(ctx)
	if err != nil {
		log.Printf("[LEARN] load trades: %v", err)
		return
	}
	if len(trades) == 0 {
		return
	}

	e.reweight(ctx, trades)
	e.minePatterns(ctx, trades)
	e.optimizeThresholds(trades)
}

func (e *Engine) loadTrades(ctx context.Context) ([]TradeRecord, error) {
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := e.queries.RecentTrades(dbCtx, ReweightLookback)
	if err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(rows))
	for _, row := range rows {
		var snap indicators.Snapshot
		if row.EntrySnapshot != "" {
			if err := json.Unmarshal([]byte(row.EntrySnapshot), &snap); err != nil {
				continue
			}
		}
		out = append(out, TradeRecord{
			ID:          row.ID,
			Ticker:      row.Ticker,
			EntryPrice:  row.EntryPrice,
			ExitPrice:   row.ExitPrice,
			Quantity:    row.Quantity,
			ReturnPct:   row.ReturnPct,
			Outcome:     row.Outcome,
			ExitReason:  row.ExitReason,
			Confidence:  row.Confidence,
			ChangePct:   row.ChangePct,
			Entry:       snap,
			OpenedAt:    row.OpenedAt,
			ClosedAt:    row.ClosedAt,
			HoldSeconds: row.HoldSeconds,
		})
	}
	return out, nil
}

func (e *Engine) reweight(ctx context.Context, trades []TradeRecord) {
	cur := e.store.Snapshot()
	next, ok := Reweight(cur.Weights, trades)
	if !ok {
		return
	}
	set, ok := e.store.SetWeights(next)
	if !ok {
		log.Printf("[LEARN] reweight produced invalid weights, keeping version %d", cur.Version)
		return
	}

	blob, _ := json.Marshal(set.Weights)
	dbCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := e.queries.InsertWeightRecord(dbCtx, db.WeightRecord{
		Version:          set.Version,
		Weights:          string(blob),
		PerformanceScore: PerformanceScore(trades),
		SampleSize:       len(trades),
	})
	if err != nil {
		log.Printf("[LEARN] persist weights: %v", err)
	}

	e.bus.Publish(events.TopicWeightsUpdated, set)
	log.Printf("[LEARN] weights updated to version %d over %d trades", set.Version, len(trades))
}

func (e *Engine) minePatterns(ctx context.Context, trades []TradeRecord) {
	now := time.Now()
	cur := e.store.Snapshot()

	validated := ValidatePatterns(cur.Patterns, trades, now)
	mined := MinePatterns(trades, now)
	merged := MergePatterns(validated, mined)

	if len(mined) > 0 {
		log.Printf("[LEARN] mined %d new patterns", len(mined))
	}
	set := e.store.SetPatterns(merged)

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, p := range set.Patterns {
		conds, _ := json.Marshal(p.Conditions)
		err := e.queries.UpsertPattern(dbCtx, db.Pattern{
			ID:           p.ID,
			Name:         p.Name,
			Conditions:   string(conds),
			WinRate:      p.WinRate,
			AvgReturn:    p.AvgReturn,
			SampleSize:   p.SampleSize,
			IsActive:     p.Active,
			DiscoveredAt: p.DiscoveredAt,
			ValidatedAt:  p.ValidatedAt,
		})
		if err != nil {
			log.Printf("[LEARN] persist pattern %s: %v", p.Name, err)
		}
	}
}

func (e *Engine) optimizeThresholds(trades []TradeRecord) {
	cur := e.store.Snapshot()
	next, ok := OptimizeThresholds(cur.Thresholds, trades)
	if !ok {
		return
	}
	set := e.store.SetThresholds(next)
	e.bus.Publish(events.TopicThresholdProposal, set.Thresholds)
	log.Printf("[LEARN] thresholds updated: change>=%.1f%% volume>=%.0f%% buy>=%.0f",
		next.MinChangePct, next.MinVolumeSpike, next.BuyConfidence)
}
