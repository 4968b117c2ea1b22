package learning

// Threshold optimization sweeps a small grid of screener cut-offs against
// recent trade history and keeps the combination with the best win rate,
// provided enough trades would still have been admitted.
const (
	ThresholdMinSample = 20
	// A stricter cut must beat the incumbent by this margin to be adopted,
	// so the knobs do not oscillate on noise.
	thresholdHysteresis = 0.05
)

var (
	changeGrid = []float64{3, 5, 7, 10}
	volumeGrid = []float64{150, 200, 300, 400}
	buyGrid    = []float64{55, 60, 65, 70, 75}
)

// OptimizeThresholds proposes updated screener and confidence cut-offs from
// trade history. Returns ok=false (and the input) when history is too thin
// or no candidate beats the incumbent by the hysteresis margin.
func OptimizeThresholds(current Thresholds, trades []TradeRecord) (Thresholds, bool) {
	if len(trades) < ThresholdMinSample {
		return current, false
	}

	baseline := winRateAbove(trades, current.MinChangePct, current.MinVolumeSpike, current.BuyConfidence)

	best := current
	bestRate := baseline
	improved := false
	for _, ch := range changeGrid {
		for _, vol := range volumeGrid {
			for _, conf := range buyGrid {
				sample := 0
				wins := 0
				for _, t := range trades {
					if t.ChangePct < ch || t.Entry.VolumeRatio < vol || t.Confidence < conf {
						continue
					}
					sample++
					if t.Outcome == OutcomeWin {
						wins++
					}
				}
				if sample < ThresholdMinSample/2 {
					continue
				}
				rate := float64(wins) / float64(sample)
				if rate > bestRate+thresholdHysteresis {
					bestRate = rate
					best = Thresholds{
						MinChangePct:    ch,
						MinVolumeSpike:  vol,
						BuyConfidence:   conf,
						WatchConfidence: current.WatchConfidence,
					}
					improved = true
				}
			}
		}
	}
	if !improved {
		return current, false
	}
	return best, true
}

func winRateAbove(trades []TradeRecord, ch, vol, conf float64) float64 {
	sample := 0
	wins := 0
	for _, t := range trades {
		if t.ChangePct < ch || t.Entry.VolumeRatio < vol || t.Confidence < conf {
			continue
		}
		sample++
		if t.Outcome == OutcomeWin {
			wins++
		}
	}
	if sample == 0 {
		return 0
	}
	return float64(wins) / float64(sample)
}
