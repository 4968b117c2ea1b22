package learning

import (
	"time"

	"momentum-core/internal/indicators"
)

// Trade outcomes as recorded after a position closes.
const (
	OutcomeWin  = "WIN"
	OutcomeLoss = "LOSS"
)

// TradeRecord is one completed round trip with the indicator snapshot that
// was current when the entry signal fired. The snapshot is what makes
// per-indicator accuracy scoring possible after the fact.
type TradeRecord struct {
	ID          string              `json:"id"`
	Ticker      string              `json:"ticker"`
	EntryPrice  float64             `json:"entry_price"`
	ExitPrice   float64             `json:"exit_price"`
	Quantity    float64             `json:"quantity"`
	ReturnPct   float64             `json:"return_pct"`
	Outcome     string              `json:"outcome"`
	ExitReason  string              `json:"exit_reason"`
	Confidence  float64             `json:"confidence"`
	ChangePct   float64             `json:"change_pct"`
	Entry       indicators.Snapshot `json:"entry_snapshot"`
	OpenedAt    time.Time           `json:"opened_at"`
	ClosedAt    time.Time           `json:"closed_at"`
	HoldSeconds int64               `json:"hold_seconds"`
}

// Reweight tuning. Lookback caps how much history one pass considers,
// minSample prevents thrashing on thin evidence, and the blend rate damps
// how fast a single pass can move the weights.
const (
	ReweightLookback  = 100
	ReweightMinSample = 20
	reweightBlendRate = 0.30
	accuracyFloor     = 0.05
)

// Reweight derives new indicator weights from recent trade outcomes.
// Each indicator is scored by how often its entry-time vote predicted the
// outcome; scores are blended into the current weights and renormalized.
// Returns ok=false (and the input weights) when the sample is too small.
func Reweight(current Weights, trades []TradeRecord) (Weights, bool) {
	if len(trades) > ReweightLookback {
		trades = trades[len(trades)-ReweightLookback:]
	}
	if len(trades) < ReweightMinSample {
		return current, false
	}

	accuracy := make(map[string]float64, len(IndicatorNames))
	for _, name := range IndicatorNames {
		correct := 0
		for _, t := range trades {
			bullish := Bullish(name, t.Entry)
			won := t.Outcome == OutcomeWin
			if bullish == won {
				correct++
			}
		}
		acc := float64(correct) / float64(len(trades))
		if acc < accuracyFloor {
			acc = accuracyFloor
		}
		accuracy[name] = acc
	}

	target := Weights(accuracy).Normalize()

	blended := make(Weights, len(IndicatorNames))
	for _, name := range IndicatorNames {
		blended[name] = (1-reweightBlendRate)*current[name] + reweightBlendRate*target[name]
	}
	return blended.Normalize(), true
}

// PerformanceScore summarizes a trade window for the weight history log:
// win rate weighted by average return.
func PerformanceScore(trades []TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	sumRet := 0.0
	for _, t := range trades {
		if t.Outcome == OutcomeWin {
			wins++
		}
		sumRet += t.ReturnPct
	}
	winRate := float64(wins) / float64(len(trades))
	avgRet := sumRet / float64(len(trades))
	return winRate * (1 + avgRet/100)
}
