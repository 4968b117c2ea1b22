package learning

import (
	"math"
	"testing"

	"momentum-core/internal/indicators"
)

func bullishSnap() indicators.Snapshot {
	return indicators.Snapshot{
		EMAFast: 105, EMASlow: 100,
		MACDHistogram: 0.5,
		RSI:           55,
		Price:         110, BollUpper: 108, BollMiddle: 100,
		VolumeRatio: 250,
	}
}

func bearishSnap() indicators.Snapshot {
	return indicators.Snapshot{
		EMAFast: 95, EMASlow: 100,
		MACDHistogram: -0.5,
		RSI:           25,
		Price:         90, BollUpper: 108, BollMiddle: 100,
		VolumeRatio: 80,
	}
}

func makeTrades(n int, snap indicators.Snapshot, outcome string) []TradeRecord {
	out := make([]TradeRecord, n)
	for i := range out {
		out[i] = TradeRecord{Outcome: outcome, Entry: snap, ReturnPct: 5}
		if outcome == OutcomeLoss {
			out[i].ReturnPct = -5
		}
	}
	return out
}

func TestDefaultWeightsValid(t *testing.T) {
	if !DefaultWeights().Valid() {
		t.Fatal("default weights must sum to 1")
	}
}

func TestReweightMinSample(t *testing.T) {
	trades := makeTrades(ReweightMinSample-1, bullishSnap(), OutcomeWin)
	w, ok := Reweight(DefaultWeights(), trades)
	if ok {
		t.Error("reweight below min sample should be a no-op")
	}
	if !w.Valid() {
		t.Error("returned weights must stay valid")
	}
}

func TestReweightSumsToOne(t *testing.T) {
	trades := append(
		makeTrades(30, bullishSnap(), OutcomeWin),
		makeTrades(20, bearishSnap(), OutcomeLoss)...,
	)
	w, ok := Reweight(DefaultWeights(), trades)
	if !ok {
		t.Fatal("reweight with 50 trades should run")
	}
	sum := 0.0
	for _, v := range w {
		if v < 0 {
			t.Errorf("negative weight %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("weights sum = %v, want 1 within 1e-6", sum)
	}
}

func TestReweightFavorsAccurateIndicators(t *testing.T) {
	// Every indicator voted bullish and every trade won: all indicators are
	// equally accurate, so repeated passes should not collapse any weight.
	trades := makeTrades(40, bullishSnap(), OutcomeWin)
	w, ok := Reweight(DefaultWeights(), trades)
	if !ok {
		t.Fatal("reweight should run")
	}
	for name, v := range w {
		if v <= 0 {
			t.Errorf("weight %s collapsed to %v", name, v)
		}
	}
}

func TestNormalizeZeroFallsBack(t *testing.T) {
	w := Weights{IndEMACross: 0, IndMACD: 0}
	if got := w.Normalize(); !got.Valid() {
		t.Error("normalize of zero weights should fall back to valid defaults")
	}
}

func TestPerformanceScore(t *testing.T) {
	wins := makeTrades(10, bullishSnap(), OutcomeWin)
	losses := makeTrades(10, bearishSnap(), OutcomeLoss)
	if PerformanceScore(wins) <= PerformanceScore(losses) {
		t.Error("all-win window should score above all-loss window")
	}
	if PerformanceScore(nil) != 0 {
		t.Error("empty window should score 0")
	}
}
