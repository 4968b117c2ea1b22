package learning

import (
	"math"
	"time"

	"momentum-core/internal/indicators"
)

// Canonical indicator family names used in weights, votes and mined patterns.
const (
	IndEMACross  = "ema_cross"
	IndMACD      = "macd"
	IndRSI       = "rsi"
	IndBollinger = "bollinger"
	IndVolume    = "volume"
)

// IndicatorNames lists the five fused families in stable order.
var IndicatorNames = []string{IndEMACross, IndMACD, IndRSI, IndBollinger, IndVolume}

// Weights maps indicator family to its contribution weight.
// Invariant: non-negative, sums to 1 within tolerance.
type Weights map[string]float64

// DefaultWeights mirrors the shipped tuning before any learning has run.
func DefaultWeights() Weights {
	return Weights{
		IndEMACross:  0.22,
		IndMACD:      0.22,
		IndRSI:       0.18,
		IndBollinger: 0.08,
		IndVolume:    0.30,
	}
}

// Normalize returns a copy rescaled to sum to 1. A zero-sum input falls back
// to defaults.
func (w Weights) Normalize() Weights {
	sum := 0.0
	for _, v := range w {
		if v > 0 {
			sum += v
		}
	}
	if sum <= 0 {
		return DefaultWeights()
	}
	out := make(Weights, len(w))
	for k, v := range w {
		if v < 0 {
			v = 0
		}
		out[k] = v / sum
	}
	return out
}

// Valid reports whether weights are non-negative and sum to 1 ± tolerance.
func (w Weights) Valid() bool {
	sum := 0.0
	for _, v := range w {
		if v < 0 {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1.0) <= 1e-6
}

// Condition is one (indicator, operator, value) clause of a mined pattern.
// Operator is one of ">=", "<=" or "between" (Value..Value2 inclusive).
type Condition struct {
	Indicator string  `json:"indicator"`
	Operator  string  `json:"operator"`
	Value     float64 `json:"value"`
	Value2    float64 `json:"value2,omitempty"`
}

// Matches evaluates the clause against an entry snapshot.
func (c Condition) Matches(snap indicators.Snapshot) bool {
	v, ok := snapshotValue(c.Indicator, snap)
	if !ok {
		return false
	}
	switch c.Operator {
	case ">=":
		return v >= c.Value
	case "<=":
		return v <= c.Value
	case "between":
		return v >= c.Value && v <= c.Value2
	default:
		return false
	}
}

// Pattern is a discovered, immutable rule. Patterns are only superseded or
// deactivated, never edited.
type Pattern struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Conditions   []Condition `json:"conditions"`
	WinRate      float64     `json:"win_rate"`
	AvgReturn    float64     `json:"avg_return"`
	SampleSize   int         `json:"sample_size"`
	Active       bool        `json:"active"`
	DiscoveredAt time.Time   `json:"discovered_at"`
	ValidatedAt  time.Time   `json:"validated_at"`
}

// Matches reports whether every condition holds for the snapshot.
func (p Pattern) Matches(snap indicators.Snapshot) bool {
	if len(p.Conditions) == 0 {
		return false
	}
	for _, c := range p.Conditions {
		if !c.Matches(snap) {
			return false
		}
	}
	return true
}

// Thresholds are the admission knobs tuned by threshold optimization. The
// change/volume cut-offs are republished for the upstream screener; the
// confidence cut-offs gate signal emission locally.
type Thresholds struct {
	MinChangePct    float64 `json:"min_change_pct"`
	MinVolumeSpike  float64 `json:"min_volume_spike_pct"`
	BuyConfidence   float64 `json:"buy_confidence"`
	WatchConfidence float64 `json:"watch_confidence"`
}

// DefaultThresholds mirrors the shipped screener tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinChangePct:    5.0,
		MinVolumeSpike:  200.0,
		BuyConfidence:   65.0,
		WatchConfidence: 45.0,
	}
}

// snapshotValue resolves an indicator family to its comparable value.
// ema_cross compares as the fast/slow spread so ">= 0" means bullish.
func snapshotValue(name string, snap indicators.Snapshot) (float64, bool) {
	switch name {
	case IndEMACross:
		return snap.EMAFast - snap.EMASlow, true
	case IndMACD:
		return snap.MACDHistogram, true
	case IndRSI:
		return snap.RSI, true
	case IndBollinger:
		if snap.BollMiddle == 0 {
			return 0, false
		}
		return snap.Price - snap.BollUpper, true
	case IndVolume:
		return snap.VolumeRatio, true
	default:
		return 0, false
	}
}

// Bullish reports whether the named indicator voted for upside at entry time.
// Used by reweighting to score per-indicator predictive accuracy.
func Bullish(name string, snap indicators.Snapshot) bool {
	switch name {
	case IndEMACross:
		return snap.EMAFast > snap.EMASlow
	case IndMACD:
		return snap.MACDHistogram > 0
	case IndRSI:
		return snap.RSI > 30 && snap.RSI < 70
	case IndBollinger:
		return snap.Price > snap.BollUpper
	case IndVolume:
		return snap.VolumeRatio > 200
	default:
		return false
	}
}
