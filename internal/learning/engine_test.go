package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"momentum-core/internal/events"
	"momentum-core/pkg/db"
)

func testEngine(t *testing.T) (*Engine, *Store, *db.Queries, *events.Bus) {
	t.Helper()
	database, err := db.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database.DB); err != nil {
		t.Fatal(err)
	}
	queries := db.NewQueries(database.DB)
	bus := events.NewBus()
	store := NewStore(nil, nil, Thresholds{})
	return NewEngine(bus, store, queries), store, queries, bus
}

func insertTrades(t *testing.T, q *db.Queries, n int, outcome string) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		snap, _ := json.Marshal(bullishSnap())
		ret := 5.0
		if outcome == OutcomeLoss {
			ret = -5
		}
		err := q.InsertTrade(ctx, db.Trade{
			ID:            fmt.Sprintf("%s-%d", outcome, i),
			PositionID:    "p",
			Ticker:        "NVDA",
			EntryPrice:    100,
			ExitPrice:     100 + ret,
			Quantity:      1,
			ReturnPct:     ret,
			Outcome:       outcome,
			ExitReason:    "STOP_LOSS",
			Confidence:    70,
			ChangePct:     7,
			EntrySnapshot: string(snap),
			OpenedAt:      base,
			ClosedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestPassReweightsAndPersists(t *testing.T) {
	e, store, queries, bus := testEngine(t)
	ctx := context.Background()

	updated, unsub := bus.Subscribe(events.TopicWeightsUpdated, 4)
	defer unsub()

	insertTrades(t, queries, 30, OutcomeWin)
	e.Pass(ctx)

	set := store.Snapshot()
	if set.Version < 2 {
		t.Errorf("store version = %d, want bumped by reweight", set.Version)
	}
	if !set.Weights.Valid() {
		t.Error("reweighted store weights invalid")
	}

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Error("weights update not published")
	}

	rec, err := queries.LatestWeights(ctx)
	if err != nil {
		t.Fatalf("weight history empty: %v", err)
	}
	var w Weights
	if err := json.Unmarshal([]byte(rec.Weights), &w); err != nil {
		t.Fatalf("stored weights unreadable: %v", err)
	}
	if !w.Valid() {
		t.Error("persisted weights invalid")
	}
}

func TestPassSkipsThinHistory(t *testing.T) {
	e, store, queries, _ := testEngine(t)
	ctx := context.Background()

	insertTrades(t, queries, ReweightMinSample-1, OutcomeWin)
	before := store.Snapshot().Weights
	e.Pass(ctx)
	after := store.Snapshot().Weights
	for _, name := range IndicatorNames {
		if after[name] != before[name] {
			t.Errorf("weight %s moved to %v on thin history", name, after[name])
		}
	}
	if _, err := queries.LatestWeights(ctx); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("no weight record should be persisted, got err = %v", err)
	}
}

func TestLoadStateRestoresWeightsAndPatterns(t *testing.T) {
	e, store, queries, _ := testEngine(t)
	ctx := context.Background()

	stored := Weights{IndEMACross: 0.3, IndMACD: 0.3, IndRSI: 0.2, IndBollinger: 0.1, IndVolume: 0.1}
	blob, _ := json.Marshal(stored)
	if err := queries.InsertWeightRecord(ctx, db.WeightRecord{Version: 7, Weights: string(blob)}); err != nil {
		t.Fatal(err)
	}
	conds, _ := json.Marshal([]Condition{{Indicator: IndVolume, Operator: ">=", Value: 200}})
	err := queries.UpsertPattern(ctx, db.Pattern{
		ID: "pat1", Name: "volume-surge", Conditions: string(conds),
		WinRate: 0.7, SampleSize: 25, IsActive: true,
		DiscoveredAt: time.Now(), ValidatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.LoadState(ctx); err != nil {
		t.Fatal(err)
	}
	set := store.Snapshot()
	if set.Weights[IndEMACross] != 0.3 {
		t.Errorf("weights not restored: %v", set.Weights)
	}
	if len(set.Patterns) != 1 || set.Patterns[0].Name != "volume-surge" {
		t.Errorf("patterns not restored: %v", set.Patterns)
	}
}

func TestLoadStateFreshDatabase(t *testing.T) {
	e, store, _, _ := testEngine(t)
	if err := e.LoadState(context.Background()); err != nil {
		t.Fatalf("fresh database should not error: %v", err)
	}
	if !store.Snapshot().Weights.Valid() {
		t.Error("defaults should stand on a fresh database")
	}
}
