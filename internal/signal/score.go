package signal

import (
	"fmt"

	"momentum-core/internal/indicators"
	"momentum-core/internal/learning"
)

// Fusion holds the per-indicator breakdown behind one confidence score.
type Fusion struct {
	Confidence float64
	Scores     map[string]float64 // 0..1 per indicator family
	Reasons    []string
}

// Score fuses the five indicator families into a 0..100 confidence using the
// current weights. Each family contributes a 0..1 sub-score; confidence is
// the weighted sum scaled to 100.
func Score(snap indicators.Snapshot, weights learning.Weights) Fusion {
	scores := map[string]float64{
		learning.IndEMACross:  scoreEMACross(snap),
		learning.IndMACD:      scoreMACD(snap),
		learning.IndRSI:       scoreRSI(snap),
		learning.IndBollinger: scoreBollinger(snap),
		learning.IndVolume:    scoreVolume(snap),
	}

	conf := 0.0
	var reasons []string
	for _, name := range learning.IndicatorNames {
		conf += weights[name] * scores[name]
		if scores[name] >= 0.8 {
			reasons = append(reasons, fmt.Sprintf("%s strong (%.2f)", name, scores[name]))
		}
	}

	return Fusion{
		Confidence: conf * 100,
		Scores:     scores,
		Reasons:    reasons,
	}
}

func scoreEMACross(s indicators.Snapshot) float64 {
	if s.EMASlow <= 0 {
		return 0
	}
	spread := (s.EMAFast - s.EMASlow) / s.EMASlow
	switch {
	case spread > 0.01:
		return 1
	case spread > 0:
		return 0.6
	default:
		return 0
	}
}

func scoreMACD(s indicators.Snapshot) float64 {
	switch {
	case s.MACDHistogram > 0 && s.MACD > 0:
		return 1
	case s.MACDHistogram > 0:
		return 0.7
	case s.MACD > s.MACDSignal:
		return 0.4
	default:
		return 0
	}
}

// scoreRSI favors room to run: momentum confirmed but not yet overbought.
func scoreRSI(s indicators.Snapshot) float64 {
	switch {
	case s.RSI >= 50 && s.RSI < 70:
		return 1
	case s.RSI > 30 && s.RSI < 50:
		return 0.6
	case s.RSI >= 70:
		return 0.2
	default:
		return 0
	}
}

func scoreBollinger(s indicators.Snapshot) float64 {
	switch {
	case s.Price > s.BollUpper:
		return 1
	case s.Price > s.BollMiddle:
		return 0.5
	default:
		return 0
	}
}

func scoreVolume(s indicators.Snapshot) float64 {
	switch {
	case s.VolumeRatio >= 300:
		return 1
	case s.VolumeRatio >= 200:
		return 0.7
	case s.VolumeRatio >= 150:
		return 0.4
	default:
		return 0
	}
}

// TrendResult is a direction plus how decisively the voters agree (0-100).
type TrendResult struct {
	Direction string  `json:"direction"`
	Strength  float64 `json:"strength"`
}

// ClassifyTrend takes a majority vote among three voters: EMA cross sign,
// MACD histogram sign and the RSI zone. Two agreeing votes set the direction;
// anything less is SIDEWAYS. Strength grows with the vote margin, with a
// bonus for a volume surge behind an uptrend.
func ClassifyTrend(snap indicators.Snapshot) TrendResult {
	bull, bear := 0, 0

	if snap.EMAFast > snap.EMASlow {
		bull++
	} else if snap.EMAFast < snap.EMASlow {
		bear++
	}
	if snap.MACDHistogram > 0 {
		bull++
	} else if snap.MACDHistogram < 0 {
		bear++
	}
	// RSI in the tradeable band backs the bulls; overbought backs the bears.
	// Oversold votes for neither.
	if snap.RSI > 30 && snap.RSI < 70 {
		bull++
	} else if snap.RSI >= 70 {
		bear++
	}

	switch {
	case bull >= 2:
		strength := 40 + float64(bull)*15
		if snap.VolumeRatio > 200 {
			strength += 10
		}
		if strength > 100 {
			strength = 100
		}
		return TrendResult{Direction: TrendUp, Strength: strength}
	case bear >= 2:
		strength := 40 + float64(bear)*15
		if strength > 100 {
			strength = 100
		}
		return TrendResult{Direction: TrendDown, Strength: strength}
	default:
		diff := bull - bear
		if diff < 0 {
			diff = -diff
		}
		return TrendResult{Direction: TrendSideways, Strength: 30 + float64(diff)*10}
	}
}

// Trend returns just the direction, for callers that answer trend checks.
func Trend(snap indicators.Snapshot) string {
	return ClassifyTrend(snap).Direction
}

// ReversalVote counts bearish votes among EMA cross-down, MACD histogram and
// RSI exhaustion. Two of three trigger a reversal exit.
func ReversalVote(snap indicators.Snapshot) (votes int, reasons []string) {
	if snap.EMAFast < snap.EMASlow {
		votes++
		reasons = append(reasons, "ema cross-down")
	}
	if snap.MACDHistogram < 0 {
		votes++
		reasons = append(reasons, "macd bearish")
	}
	if snap.RSI >= 70 {
		votes++
		reasons = append(reasons, "rsi overbought")
	}
	return votes, reasons
}

// IsReversal reports whether the vote clears the 2-of-3 bar.
func IsReversal(snap indicators.Snapshot) bool {
	v, _ := ReversalVote(snap)
	return v >= 2
}
