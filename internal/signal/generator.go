package signal

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"momentum-core/internal/events"
	"momentum-core/internal/indicators"
	"momentum-core/internal/learning"
	"momentum-core/pkg/db"
)

// Pattern matches add a small confidence boost on top of the weighted
// fusion, capped so patterns refine rather than dominate.
const (
	patternBoost    = 5.0
	patternBoostCap = 10.0
	reversalCooloff = 60 * time.Second
)

// Generator turns screener candidates into signals and watches held tickers
// for reversals. It is the single writer of TopicSignal.
type Generator struct {
	bus     *events.Bus
	ind     *indicators.Engine
	store   *learning.Store
	queries *db.Queries // optional

	mu           sync.Mutex
	held         map[string]bool
	lastReversal map[string]time.Time
}

// NewGenerator wires a signal generator. queries may be nil (tests).
func NewGenerator(bus *events.Bus, ind *indicators.Engine, store *learning.Store, queries *db.Queries) *Generator {
	return &Generator{
		bus:          bus,
		ind:          ind,
		store:        store,
		queries:      queries,
		held:         make(map[string]bool),
		lastReversal: make(map[string]time.Time),
	}
}

// Run consumes bus topics until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	candidates, unsubC := g.bus.Subscribe(events.TopicCandidate, 64)
	ticks, unsubT := g.bus.Subscribe(events.TopicPriceTick, 256)
	trendChecks, unsubTC := g.bus.Subscribe(events.TopicTrendCheck, 16)
	opened, unsubO := g.bus.Subscribe(events.TopicPositionOpened, 16)
	closed, unsubCl := g.bus.Subscribe(events.TopicPositionClosed, 16)
	defer unsubC()
	defer unsubT()
	defer unsubTC()
	defer unsubO()
	defer unsubCl()

	log.Printf("[SIGNAL] generator started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-candidates:
			if c, ok := msg.(events.Candidate); ok {
				g.handleCandidate(ctx, c)
			}
		case msg := <-ticks:
			if t, ok := msg.(events.PriceTick); ok {
				g.handleTick(ctx, t)
			}
		case msg := <-trendChecks:
			if tc, ok := msg.(events.TrendCheck); ok {
				g.answerTrend(tc)
			}
		case msg := <-opened:
			if ev, ok := msg.(events.PositionEvent); ok {
				g.setHeld(ev.Ticker, true)
			}
		case msg := <-closed:
			if ev, ok := msg.(events.PositionEvent); ok {
				g.setHeld(ev.Ticker, false)
				if ev.ExitReason == "STOP_LOSS" {
					g.emitStop(ctx, ev)
				}
			}
		}
	}
}

// handleCandidate runs the full evaluation for one screener hit.
func (g *Generator) handleCandidate(ctx context.Context, c events.Candidate) {
	params := g.store.Snapshot()
	th := params.Thresholds

	if c.ChangePct < th.MinChangePct || c.VolumeSpikePct < th.MinVolumeSpike {
		return
	}

	snap, ok := g.ind.Snapshot(c.Ticker)
	if !ok {
		// Window too short; a data-quality skip, not an error.
		return
	}

	fusion := Score(snap, params.Weights)
	confidence := fusion.Confidence

	var matched []string
	boost := 0.0
	for _, p := range params.Patterns {
		if p.Active && p.Matches(snap) {
			matched = append(matched, p.Name)
			boost += patternBoost
		}
	}
	if boost > patternBoostCap {
		boost = patternBoostCap
	}
	confidence += boost
	if confidence > 100 {
		confidence = 100
	}

	trend := ClassifyTrend(snap)

	kind := ""
	reasons := fusion.Reasons
	switch {
	case confidence >= th.BuyConfidence:
		kind = KindBuy
	case confidence >= th.WatchConfidence:
		kind = KindWatch
	default:
		return
	}

	// Money only moves with the trend. High confidence against a SIDEWAYS
	// or DOWN tape is a watch, not a buy.
	if kind == KindBuy && trend.Direction != TrendUp {
		kind = KindWatch
		reasons = append(reasons, "trend "+trend.Direction)
	}

	// A spike that has already fallen back under the band midline is a
	// failed breakout; never chase it with money.
	if kind == KindBuy && snap.Price < snap.BollMiddle {
		kind = KindWatch
		reasons = append(reasons, "failed breakout")
	}

	createdAt := c.At
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	g.emit(ctx, Signal{
		ID:              uuid.NewString(),
		Ticker:          c.Ticker,
		Kind:            kind,
		Confidence:      confidence,
		Trend:           trend.Direction,
		TrendStrength:   trend.Strength,
		Price:           snap.Price,
		ChangePct:       c.ChangePct,
		WeightsVersion:  params.Version,
		Snapshot:        snap,
		Reasons:         reasons,
		MatchedPatterns: matched,
		CreatedAt:       createdAt,
	})
}

// handleTick feeds the indicator window and checks held tickers for
// reversals.
func (g *Generator) handleTick(ctx context.Context, t events.PriceTick) {
	g.ind.Update(t.Ticker, t.Price, t.Volume)

	g.mu.Lock()
	isHeld := g.held[t.Ticker]
	last := g.lastReversal[t.Ticker]
	g.mu.Unlock()
	if !isHeld || time.Since(last) < reversalCooloff {
		return
	}

	snap, ok := g.ind.Snapshot(t.Ticker)
	if !ok {
		return
	}
	votes, reasons := ReversalVote(snap)
	if votes < 2 {
		return
	}

	g.mu.Lock()
	g.lastReversal[t.Ticker] = time.Now()
	g.mu.Unlock()

	params := g.store.Snapshot()
	trend := ClassifyTrend(snap)
	g.emit(ctx, Signal{
		ID:             uuid.NewString(),
		Ticker:         t.Ticker,
		Kind:           KindSell,
		Confidence:     float64(votes) / 3 * 100,
		Trend:          trend.Direction,
		TrendStrength:  trend.Strength,
		Price:          snap.Price,
		WeightsVersion: params.Version,
		Snapshot:       snap,
		Reasons:        reasons,
		CreatedAt:      time.Now(),
	})
}

// answerTrend serves the take-profit gate. The reply channel is buffered by
// the asker; a full buffer means the asker gave up and we drop the answer.
func (g *Generator) answerTrend(tc events.TrendCheck) {
	snap, ok := g.ind.Snapshot(tc.Ticker)
	trend := TrendSideways
	if ok {
		trend = Trend(snap)
	}
	select {
	case tc.Reply <- trend:
	default:
	}
}

// emitStop publishes a STOP feedback signal after a stop-loss exit so the
// learning engine sees the event in the signal stream too.
func (g *Generator) emitStop(ctx context.Context, ev events.PositionEvent) {
	snap, _ := g.ind.Snapshot(ev.Ticker)
	trend := ClassifyTrend(snap)
	g.emit(ctx, Signal{
		ID:            uuid.NewString(),
		Ticker:        ev.Ticker,
		Kind:          KindStop,
		Trend:         trend.Direction,
		TrendStrength: trend.Strength,
		Price:         snap.Price,
		Snapshot:      snap,
		Reasons:       []string{"stop loss triggered"},
		CreatedAt:     time.Now(),
		Confidence:    100,
	})
}

func (g *Generator) emit(ctx context.Context, sig Signal) {
	g.persist(ctx, sig)
	log.Printf("[SIGNAL] %s %s confidence=%.1f trend=%s price=%.2f",
		sig.Kind, sig.Ticker, sig.Confidence, sig.Trend, sig.Price)

	// BUY and SELL drive money movement; they must reach the position
	// manager even if it is momentarily busy.
	switch sig.Kind {
	case KindBuy, KindSell:
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := g.bus.PublishWait(pubCtx, events.TopicSignal, sig); err != nil {
			log.Printf("[SIGNAL] publish %s %s: %v", sig.Kind, sig.Ticker, err)
		}
	default:
		g.bus.Publish(events.TopicSignal, sig)
	}
}

func (g *Generator) persist(ctx context.Context, sig Signal) {
	if g.queries == nil {
		return
	}
	snapJSON, _ := json.Marshal(sig.Snapshot)
	reasonsJSON, _ := json.Marshal(sig.Reasons)
	dbCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := g.queries.InsertSignal(dbCtx, db.Signal{
		ID:             sig.ID,
		Ticker:         sig.Ticker,
		Kind:           sig.Kind,
		Confidence:     sig.Confidence,
		Trend:          sig.Trend,
		TrendStrength:  sig.TrendStrength,
		Price:          sig.Price,
		ChangePct:      sig.ChangePct,
		WeightsVersion: sig.WeightsVersion,
		Snapshot:       string(snapJSON),
		Reasons:        string(reasonsJSON),
	})
	if err != nil {
		log.Printf("[SIGNAL] persist signal: %v", err)
	}
}

func (g *Generator) setHeld(ticker string, held bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if held {
		g.held[ticker] = true
	} else {
		delete(g.held, ticker)
	}
}
