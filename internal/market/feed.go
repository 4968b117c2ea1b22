// Package market delivers screener candidates and price ticks onto the bus.
package market

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"momentum-core/internal/events"
)

// feedMessage is the screener's wire format. Type is "candidate" or "tick".
type feedMessage struct {
	Type           string    `json:"type"`
	Ticker         string    `json:"ticker"`
	Price          float64   `json:"price"`
	Volume         float64   `json:"volume"`
	ChangePct      float64   `json:"change_pct"`
	VolumeSpikePct float64   `json:"volume_spike_pct"`
	Timestamp      time.Time `json:"timestamp"`
}

// Feed is a websocket client for the upstream screener. It reconnects with
// backoff forever; a dead feed just means no new candidates.
type Feed struct {
	URL string
	Bus *events.Bus
}

// Run blocks until ctx is cancelled, reconnecting as needed.
func (f *Feed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.consume(ctx); err != nil {
			log.Printf("[MARKET] feed disconnected: %v (retry in %s)", err, backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *Feed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[MARKET] connected to screener at %s", f.URL)

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[MARKET] bad feed message (skipping): %v", err)
			continue
		}
		switch msg.Type {
		case "candidate":
			at := msg.Timestamp
			if at.IsZero() {
				at = time.Now()
			}
			f.Bus.Publish(events.TopicCandidate, events.Candidate{
				Ticker:         msg.Ticker,
				Price:          msg.Price,
				ChangePct:      msg.ChangePct,
				VolumeSpikePct: msg.VolumeSpikePct,
				At:             at,
			})
		case "tick":
			f.Bus.Publish(events.TopicPriceTick, events.PriceTick{
				Ticker: msg.Ticker,
				Price:  msg.Price,
				Volume: msg.Volume,
			})
		}
	}
}
