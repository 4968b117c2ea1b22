package market

import (
	"context"
	"log"
	"math/rand"
	"time"

	"momentum-core/internal/events"
)

// MockFeed generates synthetic ticks for local development: random walks
// with occasional momentum spikes that get published as candidates.
type MockFeed struct {
	Bus      *events.Bus
	Tickers  []string
	Interval time.Duration

	prices  map[string]float64
	volumes map[string]float64
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if len(m.Tickers) == 0 {
		m.Tickers = []string{"NVDA", "AMD", "TSLA"}
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}
	m.prices = make(map[string]float64)
	m.volumes = make(map[string]float64)
	for _, t := range m.Tickers {
		m.prices[t] = 50 + rand.Float64()*150
		m.volumes[t] = 1e6
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, ticker := range m.Tickers {
					m.step(ticker)
				}
			}
		}
	}()
}

func (m *MockFeed) step(ticker string) {
	price := m.prices[ticker]
	volume := m.volumes[ticker] * (0.8 + rand.Float64()*0.4)

	// Random walk with a rare spike.
	price *= 1 + (rand.Float64()*2-1)*0.005
	spiked := rand.Float64() < 0.01
	if spiked {
		price *= 1 + 0.03 + rand.Float64()*0.05
		volume *= 3 + rand.Float64()*2
	}
	m.prices[ticker] = price

	m.Bus.Publish(events.TopicPriceTick, events.PriceTick{
		Ticker: ticker,
		Price:  price,
		Volume: volume,
	})
	if spiked {
		m.Bus.Publish(events.TopicCandidate, events.Candidate{
			Ticker:         ticker,
			Price:          price,
			ChangePct:      5 + rand.Float64()*5,
			VolumeSpikePct: 250 + rand.Float64()*200,
			At:             time.Now(),
		})
	}
}
