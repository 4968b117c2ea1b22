package broker

import (
	"context"
	"log"
	"time"
)

// Watchdog pings the gateway periodically and fires callbacks when it
// becomes unreachable or recovers. Three consecutive failures count as an
// outage; one success clears it.
type Watchdog struct {
	client    *Client
	interval  time.Duration
	threshold int

	OnUnreachable func(consecutiveFailures int)
	OnRecovered   func()
}

// NewWatchdog creates a watchdog with a 10s ping interval and threshold 3.
func NewWatchdog(client *Client) *Watchdog {
	return &Watchdog{
		client:    client,
		interval:  10 * time.Second,
		threshold: 3,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	failures := 0
	down := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := w.client.Ping(pingCtx)
		cancel()

		if err == nil {
			if down {
				log.Printf("[BROKER] gateway recovered")
				if w.OnRecovered != nil {
					w.OnRecovered()
				}
			}
			failures = 0
			down = false
			continue
		}

		failures++
		log.Printf("[BROKER] ping failed (%d/%d): %v", failures, w.threshold, err)
		if failures >= w.threshold && !down {
			down = true
			if w.OnUnreachable != nil {
				w.OnUnreachable(failures)
			}
		}
	}
}
