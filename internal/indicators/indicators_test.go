package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := SMA(values, 5); !almostEqual(got, 3, 1e-9) {
		t.Errorf("SMA = %v, want 3", got)
	}
	if got := SMA(values, 2); !almostEqual(got, 4.5, 1e-9) {
		t.Errorf("SMA(2) = %v, want 4.5", got)
	}
	if got := SMA(values, 10); got != 0 {
		t.Errorf("SMA short input = %v, want 0", got)
	}
}

func TestEMAConvergesToConstant(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 42
	}
	if got := EMA(values, 5); !almostEqual(got, 42, 1e-9) {
		t.Errorf("EMA of constant series = %v, want 42", got)
	}
}

func TestEMARisesWithTrend(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(100 + i)
	}
	fast := EMA(values, 5)
	slow := EMA(values, 20)
	if fast <= slow {
		t.Errorf("uptrend should put fast EMA above slow: fast=%v slow=%v", fast, slow)
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   func(v float64) bool
	}{
		{
			name:   "all gains",
			values: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			want:   func(v float64) bool { return v == 100 },
		},
		{
			name:   "all losses",
			values: []float64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
			want:   func(v float64) bool { return v == 0 },
		},
		{
			name:   "short input",
			values: []float64{1, 2, 3},
			want:   func(v float64) bool { return v == 0 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RSI(tt.values, 14); !tt.want(got) {
				t.Errorf("RSI = %v", got)
			}
		})
	}
}

func TestMACDSign(t *testing.T) {
	up := make([]float64, 60)
	down := make([]float64, 60)
	for i := range up {
		up[i] = 100 * math.Pow(1.01, float64(i))
		down[i] = 100 * math.Pow(0.99, float64(i))
	}

	res, ok := MACD(up, 12, 26, 9)
	if !ok {
		t.Fatal("MACD on uptrend returned ok=false")
	}
	if res.Line <= 0 {
		t.Errorf("uptrend MACD line = %v, want > 0", res.Line)
	}

	res, ok = MACD(down, 12, 26, 9)
	if !ok {
		t.Fatal("MACD on downtrend returned ok=false")
	}
	if res.Line >= 0 {
		t.Errorf("downtrend MACD line = %v, want < 0", res.Line)
	}

	if _, ok := MACD(up[:20], 12, 26, 9); ok {
		t.Error("MACD on short input should return ok=false")
	}
}

func TestBollinger(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 50
	}
	upper, middle, lower, ok := Bollinger(flat, 20, 2)
	if !ok {
		t.Fatal("Bollinger returned ok=false")
	}
	if !almostEqual(upper, 50, 1e-9) || !almostEqual(middle, 50, 1e-9) || !almostEqual(lower, 50, 1e-9) {
		t.Errorf("flat series bands = %v/%v/%v, want all 50", upper, middle, lower)
	}

	if _, _, _, ok := Bollinger(flat[:10], 20, 2); ok {
		t.Error("Bollinger on short input should return ok=false")
	}
}

func TestEngineSnapshotShortWindow(t *testing.T) {
	e := NewEngine(DefaultParams(), 100)
	for i := 0; i < 10; i++ {
		e.Update("NVDA", 100+float64(i), 1000)
	}
	if _, ok := e.Snapshot("NVDA"); ok {
		t.Error("snapshot with 10 bars should be a data-quality skip")
	}
	if n := e.BarCount("NVDA"); n != 10 {
		t.Errorf("BarCount = %d, want 10", n)
	}
}

func TestEngineSnapshotFullWindow(t *testing.T) {
	e := NewEngine(DefaultParams(), 100)
	for i := 0; i < 50; i++ {
		vol := 1000.0
		if i >= 47 {
			vol = 4000 // recent spike
		}
		e.Update("NVDA", 100+float64(i), vol)
	}
	snap, ok := e.Snapshot("NVDA")
	if !ok {
		t.Fatal("snapshot with 50 bars should succeed")
	}
	if snap.EMAFast <= snap.EMASlow {
		t.Errorf("uptrend snapshot: fast=%v slow=%v", snap.EMAFast, snap.EMASlow)
	}
	if snap.Price != 149 {
		t.Errorf("snapshot price = %v, want 149", snap.Price)
	}
	if snap.VolumeRatio < 300 {
		t.Errorf("volume ratio = %v, want spike above 300", snap.VolumeRatio)
	}
}

func TestEngineWindowCap(t *testing.T) {
	e := NewEngine(DefaultParams(), 50)
	for i := 0; i < 200; i++ {
		e.Update("AMD", float64(i), 1)
	}
	if n := e.BarCount("AMD"); n != 50 {
		t.Errorf("BarCount = %d, want capped at 50", n)
	}
}
