package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"momentum-core/internal/events"
)

func TestWALRecoverReturnsOnlyIncomplete(t *testing.T) {
	dir := t.TempDir()
	wal, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}

	a := Intent{ID: "a", Ticker: "NVDA", Side: SideBuy, Qty: 1}
	b := Intent{ID: "b", Ticker: "AMD", Side: SideSell, Qty: 2}
	for _, in := range []Intent{a, b} {
		if err := wal.Record(in); err != nil {
			t.Fatal(err)
		}
	}
	if err := wal.Complete(a); err != nil {
		t.Fatal(err)
	}
	wal.Close()

	wal2, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer wal2.Close()
	pending, err := wal2.Recover()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Errorf("recovered %v, want only intent b", pending)
	}

	// Recovery compacted the log; a fresh recover of the same state still
	// returns the pending intent.
	pending, err = wal2.Recover()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Errorf("post-compaction recover = %v, want intent b", pending)
	}
}

func TestPaperGatewayFillsWithCommission(t *testing.T) {
	gw := NewPaperGateway(PaperConfig{FeeRate: 0.001})
	fill, err := gw.Submit(context.Background(), Intent{
		ID: "x", Ticker: "NVDA", Side: SideBuy, Qty: 10, Price: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fill.Price != 100 {
		t.Errorf("fill price = %v, want 100 with zero slippage", fill.Price)
	}
	if fill.Commission != 1 {
		t.Errorf("commission = %v, want 1", fill.Commission)
	}
	if fill.Cost() != 1001 {
		t.Errorf("cost = %v, want 1001", fill.Cost())
	}
}

func TestPaperGatewaySlippageDirection(t *testing.T) {
	gw := NewPaperGateway(PaperConfig{SlippageBps: 50})
	buy, _ := gw.Submit(context.Background(), Intent{ID: "b", Side: SideBuy, Qty: 1, Price: 100})
	sell, _ := gw.Submit(context.Background(), Intent{ID: "s", Side: SideSell, Qty: 1, Price: 100})
	if buy.Price < 100 {
		t.Errorf("buy slippage must be adverse, got %v", buy.Price)
	}
	if sell.Price > 100 {
		t.Errorf("sell slippage must be adverse, got %v", sell.Price)
	}
}

// flakyGateway fails a fixed number of times before succeeding.
type flakyGateway struct {
	failures int
	calls    int
}

func (f *flakyGateway) Name() string { return "flaky" }

func (f *flakyGateway) Submit(ctx context.Context, in Intent) (Fill, error) {
	f.calls++
	if f.calls <= f.failures {
		return Fill{}, errors.New("venue hiccup")
	}
	return Fill{OrderID: "ok", Ticker: in.Ticker, Side: in.Side, Qty: in.Qty, Price: in.Price, FilledAt: time.Now()}, nil
}

func TestExecutorRetriesOnce(t *testing.T) {
	bus := events.NewBus()
	filled, unsub := bus.Subscribe(events.TopicOrderFilled, 1)
	defer unsub()

	gw := &flakyGateway{failures: 1}
	exec := NewExecutor(gw, bus, nil)
	exec.backoff = time.Millisecond

	fill, err := exec.Execute(context.Background(), Intent{ID: "i", Ticker: "NVDA", Side: SideBuy, Qty: 1, Price: 50})
	if err != nil {
		t.Fatalf("execute with one transient failure: %v", err)
	}
	if fill.OrderID != "ok" || gw.calls != 2 {
		t.Errorf("calls = %d, want 2", gw.calls)
	}

	select {
	case <-filled:
	case <-time.After(time.Second):
		t.Error("fill event not published")
	}
}

func TestExecutorGivesUpAfterRetry(t *testing.T) {
	bus := events.NewBus()
	rejected, unsub := bus.Subscribe(events.TopicOrderRejected, 1)
	defer unsub()

	gw := &flakyGateway{failures: 10}
	exec := NewExecutor(gw, bus, nil)
	exec.backoff = time.Millisecond

	if _, err := exec.Execute(context.Background(), Intent{ID: "i", Ticker: "NVDA", Side: SideBuy, Qty: 1, Price: 50}); err == nil {
		t.Fatal("expected failure after retries")
	}
	if gw.calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", gw.calls)
	}
	select {
	case <-rejected:
	case <-time.After(time.Second):
		t.Error("reject event not published")
	}
}

// rejectingGateway rejects terminally.
type rejectingGateway struct{ calls int }

func (r *rejectingGateway) Name() string { return "rejecting" }

func (r *rejectingGateway) Submit(ctx context.Context, in Intent) (Fill, error) {
	r.calls++
	return Fill{}, ErrRejected
}

func TestExecutorDoesNotRetryRejections(t *testing.T) {
	gw := &rejectingGateway{}
	exec := NewExecutor(gw, events.NewBus(), nil)
	exec.backoff = time.Millisecond

	_, err := exec.Execute(context.Background(), Intent{ID: "i", Ticker: "NVDA", Side: SideBuy, Qty: 1, Price: 50})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if gw.calls != 1 {
		t.Errorf("calls = %d, terminal rejection must not be retried", gw.calls)
	}
}

func TestResubmitRecoveredDropsStaleBuys(t *testing.T) {
	bus := events.NewBus()
	gw := &flakyGateway{}
	exec := NewExecutor(gw, bus, nil)

	exec.ResubmitRecovered(context.Background(), []Intent{
		{ID: "buy", Side: SideBuy, Ticker: "NVDA", Qty: 1, Price: 10},
		{ID: "sell", Side: SideSell, Ticker: "AMD", Qty: 2, Price: 20},
	})
	if gw.calls != 1 {
		t.Errorf("gateway calls = %d, want only the recovered sell", gw.calls)
	}
}
