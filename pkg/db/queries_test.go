package db

import (
	"context"
	"testing"
	"time"
)

func testQueries(t *testing.T) *Queries {
	t.Helper()
	database, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := Migrate(database.DB); err != nil {
		t.Fatal(err)
	}
	return NewQueries(database.DB)
}

func TestOnlyOneOpenPositionPerTicker(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	first := Position{ID: "p1", Ticker: "NVDA", Status: "OPEN", OpenedAt: time.Now()}
	if err := q.InsertPosition(ctx, first); err != nil {
		t.Fatal(err)
	}

	dup := Position{ID: "p2", Ticker: "NVDA", Status: "INITIATING", OpenedAt: time.Now()}
	if err := q.InsertPosition(ctx, dup); err == nil {
		t.Fatal("second non-CLOSED position for NVDA must violate the unique index")
	}

	// Close the first; a new one is allowed again.
	now := time.Now()
	first.Status = "CLOSED"
	first.ExitReason = "STOP_LOSS"
	first.ClosedAt = &now
	if err := q.UpdatePosition(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := q.InsertPosition(ctx, dup); err != nil {
		t.Errorf("insert after close: %v", err)
	}

	n, err := q.CountOpenPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("open count = %d, want 1", n)
	}
}

func TestUpdateMissingPosition(t *testing.T) {
	q := testQueries(t)
	err := q.UpdatePosition(context.Background(), Position{ID: "ghost", Status: "OPEN"})
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTradeRoundTrip(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	opened := time.Now().Add(-time.Hour)
	tr := Trade{
		ID: "t1", PositionID: "p1", Ticker: "NVDA",
		EntryPrice: 100, ExitPrice: 112, Quantity: 10,
		ReturnPct: 12, Outcome: "WIN", ExitReason: "TAKE_PROFIT",
		Confidence: 72, ChangePct: 6.5, EntrySnapshot: `{"rsi":60}`,
		HoldSeconds: 3600, OpenedAt: opened, ClosedAt: time.Now(),
	}
	if err := q.InsertTrade(ctx, tr); err != nil {
		t.Fatal(err)
	}

	rows, err := q.RecentTrades(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d trades, want 1", len(rows))
	}
	got := rows[0]
	if got.Outcome != "WIN" || got.ReturnPct != 12 || got.EntrySnapshot != `{"rsi":60}` {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestRecentTradesOrderedOldestFirst(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		tr := Trade{
			ID: string(rune('a' + i)), PositionID: "p", Ticker: "NVDA",
			EntryPrice: 100, ExitPrice: 101, Quantity: 1, ReturnPct: 1,
			Outcome: "WIN", ExitReason: "TAKE_PROFIT",
			OpenedAt: base, ClosedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := q.InsertTrade(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := q.RecentTrades(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d trades, want 2", len(rows))
	}
	if !rows[0].ClosedAt.Before(rows[1].ClosedAt) {
		t.Error("trades should come back oldest first within the window")
	}
}

func TestSignalOutcomeWriteBack(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	s := Signal{
		ID: "s1", Ticker: "NVDA", Kind: "BUY", Confidence: 78,
		Trend: "UP", TrendStrength: 70, Price: 128, ChangePct: 8,
		WeightsVersion: 3, Snapshot: `{"rsi":60}`, Reasons: `["volume surge"]`,
	}
	if err := q.InsertSignal(ctx, s); err != nil {
		t.Fatal(err)
	}

	rows, err := q.RecentSignals(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d signals, want 1", len(rows))
	}
	if rows[0].Outcome != "PENDING" || rows[0].OutcomePct != 0 {
		t.Errorf("fresh signal outcome = %s/%v, want PENDING/0", rows[0].Outcome, rows[0].OutcomePct)
	}
	if rows[0].TrendStrength != 70 {
		t.Errorf("trend strength = %v, want 70", rows[0].TrendStrength)
	}

	if err := q.UpdateSignalOutcome(ctx, "s1", "LOSS", -16.2); err != nil {
		t.Fatal(err)
	}
	rows, err = q.RecentSignals(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Outcome != "LOSS" || rows[0].OutcomePct != -16.2 {
		t.Errorf("settled signal outcome = %s/%v, want LOSS/-16.2", rows[0].Outcome, rows[0].OutcomePct)
	}

	if err := q.UpdateSignalOutcome(ctx, "ghost", "WIN", 5); err != ErrNotFound {
		t.Errorf("missing signal err = %v, want ErrNotFound", err)
	}

	// A second, still-pending BUY rolls up next to the settled one.
	s.ID = "s2"
	if err := q.InsertSignal(ctx, s); err != nil {
		t.Fatal(err)
	}
	stats, err := q.SignalOutcomeStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d stat rows, want 1", len(stats))
	}
	if st := stats[0]; st.Kind != "BUY" || st.Total != 2 || st.Wins != 0 || st.Losses != 1 || st.Pending != 1 {
		t.Errorf("BUY stats = %+v", st)
	}
}

func TestFillsRoundTrip(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute).Round(time.Second)
	fills := []Fill{
		{ID: "f1", PositionID: "p1", Ticker: "NVDA", Side: "BUY", Quantity: 1,
			OrderPrice: 100, FilledPrice: 100.3, Slippage: 0.3, Commission: 0.1,
			SplitIndex: 1, FilledAt: base},
		{ID: "f2", PositionID: "p1", Ticker: "NVDA", Side: "BUY", Quantity: 0.9,
			OrderPrice: 110, FilledPrice: 109.8, Slippage: -0.2, Commission: 0.1,
			SplitIndex: 2, FilledAt: base.Add(time.Minute)},
		{ID: "f3", PositionID: "p1", Ticker: "NVDA", Side: "SELL", Quantity: 1.9,
			OrderPrice: 130, FilledPrice: 129.5, Slippage: -0.5, Commission: 0.2,
			SplitIndex: 0, FilledAt: base.Add(2 * time.Minute)},
	}
	// Insert out of order; the query sorts by execution time.
	for _, i := range []int{2, 0, 1} {
		if err := q.InsertFill(ctx, fills[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.InsertFill(ctx, Fill{ID: "fx", PositionID: "other", Ticker: "AMD",
		Side: "BUY", Quantity: 1, OrderPrice: 50, FilledPrice: 50, FilledAt: base}); err != nil {
		t.Fatal(err)
	}

	rows, err := q.FillsForPosition(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d fills, want 3", len(rows))
	}
	for i, want := range fills {
		got := rows[i]
		if got.ID != want.ID || got.Side != want.Side || got.SplitIndex != want.SplitIndex {
			t.Errorf("fill %d = %+v, want %+v", i, got, want)
		}
		if got.OrderPrice != want.OrderPrice || got.FilledPrice != want.FilledPrice ||
			got.Slippage != want.Slippage || got.Commission != want.Commission {
			t.Errorf("fill %d prices = %+v, want %+v", i, got, want)
		}
	}
}

func TestPatternUpsertByName(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	p := Pattern{
		ID: "pat1", Name: "macd+rsi", Conditions: `[]`,
		WinRate: 0.7, SampleSize: 20, IsActive: true,
		DiscoveredAt: time.Now(), ValidatedAt: time.Now(),
	}
	if err := q.UpsertPattern(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.WinRate = 0.55
	p.IsActive = false
	if err := q.UpsertPattern(ctx, p); err != nil {
		t.Fatal(err)
	}

	rows, err := q.ListPatterns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d patterns, want 1", len(rows))
	}
	if rows[0].WinRate != 0.55 || rows[0].IsActive {
		t.Errorf("upsert did not refresh stats: %+v", rows[0])
	}
}

func TestWeightHistoryLatest(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	if _, err := q.LatestWeights(ctx); err != ErrNotFound {
		t.Errorf("empty table err = %v, want ErrNotFound", err)
	}

	for v := 2; v <= 4; v++ {
		if err := q.InsertWeightRecord(ctx, WeightRecord{Version: v, Weights: `{}`}); err != nil {
			t.Fatal(err)
		}
	}
	rec, err := q.LatestWeights(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 4 {
		t.Errorf("latest version = %d, want 4", rec.Version)
	}
}

func TestTickerStatsAggregation(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	if err := q.BumpTickerStats(ctx, "NVDA", true, 10); err != nil {
		t.Fatal(err)
	}
	if err := q.BumpTickerStats(ctx, "NVDA", false, -5); err != nil {
		t.Fatal(err)
	}

	rows, err := q.ListTickerStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	s := rows[0]
	if s.Trades != 2 || s.Wins != 1 || s.TotalReturnPct != 5 {
		t.Errorf("aggregate = %+v", s)
	}
}

func TestRiskMetricsAccumulate(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()
	date := "2026-08-31"

	if err := q.AddRiskMetrics(ctx, date, 150, true); err != nil {
		t.Fatal(err)
	}
	if err := q.AddRiskMetrics(ctx, date, -50, false); err != nil {
		t.Fatal(err)
	}
	if err := q.AddDailySpend(ctx, date, 200_000); err != nil {
		t.Fatal(err)
	}

	m, err := q.RiskMetricsFor(ctx, date)
	if err != nil {
		t.Fatal(err)
	}
	if m.DailyPnL != 100 || m.DailyTrades != 2 || m.DailyWins != 1 || m.DailySpend != 200_000 {
		t.Errorf("metrics = %+v", m)
	}

	empty, err := q.RiskMetricsFor(ctx, "1999-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if empty.DailyTrades != 0 {
		t.Errorf("missing date should be a zero row, got %+v", empty)
	}
}
