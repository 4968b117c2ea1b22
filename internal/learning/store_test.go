package learning

import "testing"

func TestStoreVersioning(t *testing.T) {
	s := NewStore(nil, nil, Thresholds{})
	first := s.Snapshot()
	if first.Version != 1 {
		t.Errorf("initial version = %d, want 1", first.Version)
	}
	if !first.Weights.Valid() {
		t.Error("initial weights invalid")
	}

	next, ok := s.SetWeights(DefaultWeights())
	if !ok || next.Version != 2 {
		t.Errorf("SetWeights version = %d ok=%v, want 2 true", next.Version, ok)
	}

	s.SetPatterns([]Pattern{{Name: "macd+rsi"}})
	s.SetThresholds(Thresholds{MinChangePct: 7, MinVolumeSpike: 300, BuyConfidence: 70, WatchConfidence: 45})
	if got := s.Snapshot().Version; got != 4 {
		t.Errorf("version after two more updates = %d, want 4", got)
	}
}

func TestStoreRejectsInvalidWeights(t *testing.T) {
	s := NewStore(nil, nil, Thresholds{})
	before := s.Snapshot()
	got, ok := s.SetWeights(Weights{IndEMACross: 0.9, IndMACD: 0.9})
	if ok {
		t.Error("weights summing to 1.8 should be rejected")
	}
	if got.Version != before.Version {
		t.Error("rejected update must not bump the version")
	}
}

func TestOptimizeThresholdsNeedsEvidence(t *testing.T) {
	cur := DefaultThresholds()
	if _, ok := OptimizeThresholds(cur, nil); ok {
		t.Error("no history should not move thresholds")
	}

	// Uniform history: no candidate can beat the incumbent by the margin.
	trades := makeTrades(40, bullishSnap(), OutcomeWin)
	for i := range trades {
		trades[i].ChangePct = 8
		trades[i].Confidence = 70
	}
	if _, ok := OptimizeThresholds(cur, trades); ok {
		t.Error("uniformly winning history gives no candidate an edge over the incumbent")
	}
}

func TestOptimizeThresholdsFindsStricterCut(t *testing.T) {
	// Low-change entries lose, high-change entries win: the optimizer should
	// move the change cut-off up.
	var trades []TradeRecord
	for i := 0; i < 20; i++ {
		tr := TradeRecord{Outcome: OutcomeLoss, Entry: bullishSnap(), ChangePct: 6, Confidence: 70}
		trades = append(trades, tr)
	}
	for i := 0; i < 20; i++ {
		tr := TradeRecord{Outcome: OutcomeWin, Entry: bullishSnap(), ChangePct: 9, Confidence: 70}
		trades = append(trades, tr)
	}
	next, ok := OptimizeThresholds(DefaultThresholds(), trades)
	if !ok {
		t.Fatal("split history should move thresholds")
	}
	if next.MinChangePct <= 5 {
		t.Errorf("MinChangePct = %v, want stricter than 5", next.MinChangePct)
	}
	if next.WatchConfidence != DefaultThresholds().WatchConfidence {
		t.Error("watch confidence is not optimized and must not change")
	}
}
