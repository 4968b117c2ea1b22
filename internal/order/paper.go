package order

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	FeeRate      float64 // decimal, e.g. 0.0004 = 4 bps
	SlippageBps  float64 // basis points of adverse slippage on fills
	LatencyMinMs int
	LatencyMaxMs int
}

// PaperGateway fills every intent at the reference price plus simulated
// slippage and commission. Used in dry-run mode and tests.
type PaperGateway struct {
	cfg PaperConfig
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPaperGateway creates a simulated venue.
func NewPaperGateway(cfg PaperConfig) *PaperGateway {
	if cfg.LatencyMinMs > cfg.LatencyMaxMs {
		cfg.LatencyMinMs, cfg.LatencyMaxMs = cfg.LatencyMaxMs, cfg.LatencyMinMs
	}
	return &PaperGateway{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *PaperGateway) Name() string { return "paper" }

// Submit simulates latency, applies slippage against the order side and
// charges the fee rate.
func (p *PaperGateway) Submit(ctx context.Context, in Intent) (Fill, error) {
	if delay := p.latency(); delay > 0 {
		select {
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	price := in.Price
	if price <= 0 {
		price = 1
	}
	if frac := p.cfg.SlippageBps / 10000.0; frac > 0 {
		p.mu.Lock()
		noise := p.rng.Float64() * frac
		p.mu.Unlock()
		if in.Side == SideBuy {
			price *= 1 + noise
		} else {
			price *= 1 - noise
		}
	}

	return Fill{
		OrderID:    uuid.NewString(),
		PositionID: in.PositionID,
		Ticker:     in.Ticker,
		Side:       in.Side,
		Qty:        in.Qty,
		Price:      price,
		Commission: price * in.Qty * p.cfg.FeeRate,
		Tranche:    in.Tranche,
		FilledAt:   time.Now(),
	}, nil
}

func (p *PaperGateway) latency() time.Duration {
	if p.cfg.LatencyMaxMs <= 0 {
		return 0
	}
	span := p.cfg.LatencyMaxMs - p.cfg.LatencyMinMs
	ms := p.cfg.LatencyMinMs
	if span > 0 {
		p.mu.Lock()
		ms += p.rng.Intn(span + 1)
		p.mu.Unlock()
	}
	return time.Duration(ms) * time.Millisecond
}
