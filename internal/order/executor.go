package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"momentum-core/internal/events"
)

// Gateway executes intents against a venue. Implementations must be safe for
// concurrent use; per-ticker ordering is the caller's concern.
type Gateway interface {
	Submit(ctx context.Context, in Intent) (Fill, error)
	Name() string
}

// ErrRejected marks a terminal rejection; the executor will not retry it.
var ErrRejected = errors.New("order rejected")

// Executor submits intents through a gateway with WAL durability and
// publishes fill/reject events on the bus.
type Executor struct {
	gateway Gateway
	bus     *events.Bus
	wal     *Log
	retries int
	backoff time.Duration
}

// NewExecutor wires an executor. wal may be nil (tests).
func NewExecutor(gateway Gateway, bus *events.Bus, wal *Log) *Executor {
	return &Executor{
		gateway: gateway,
		bus:     bus,
		wal:     wal,
		retries: 1,
		backoff: 2 * time.Second,
	}
}

// Execute runs one intent to completion: WAL record, gateway submit with one
// retry on transient failure, WAL complete, event publish. The caller's ctx
// bounds the whole attempt.
func (e *Executor) Execute(ctx context.Context, in Intent) (Fill, error) {
	if in.Qty <= 0 {
		return Fill{}, fmt.Errorf("invalid qty %.4f for %s", in.Qty, in.Ticker)
	}
	if e.wal != nil {
		if err := e.wal.Record(in); err != nil {
			return Fill{}, fmt.Errorf("record order: %w", err)
		}
	}

	var fill Fill
	var err error
	for attempt := 0; ; attempt++ {
		fill, err = e.gateway.Submit(ctx, in)
		if err == nil || errors.Is(err, ErrRejected) || attempt >= e.retries {
			break
		}
		log.Printf("[ORDER] submit %s %s failed (attempt %d): %v", in.Side, in.Ticker, attempt+1, err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(e.backoff):
			continue
		}
		break
	}

	if err != nil {
		if e.wal != nil && errors.Is(err, ErrRejected) {
			// Terminal; do not resubmit after restart.
			e.wal.Complete(in)
		}
		e.bus.Publish(events.TopicOrderRejected, in)
		return Fill{}, err
	}

	if e.wal != nil {
		if werr := e.wal.Complete(in); werr != nil {
			log.Printf("[ORDER] WAL complete failed for %s: %v", in.ID, werr)
		}
	}
	e.bus.Publish(events.TopicOrderFilled, fill)
	return fill, nil
}

// ResubmitRecovered handles intents recovered from the WAL after a restart.
// SELL intents are resubmitted: an exit that was in flight must finish.
// BUY intents are dropped as stale; the entry loop that wanted them is gone.
func (e *Executor) ResubmitRecovered(ctx context.Context, pending []Intent) {
	for _, in := range pending {
		if in.Side != SideSell {
			log.Printf("[ORDER] dropping stale recovered %s %s (tranche %d)", in.Side, in.Ticker, in.Tranche)
			if e.wal != nil {
				e.wal.Complete(in)
			}
			continue
		}
		if _, err := e.Execute(ctx, in); err != nil {
			log.Printf("[ORDER] recovered exit %s failed: %v", in.Ticker, err)
		}
	}
}
