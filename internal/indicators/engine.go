package indicators

import "sync"

// Snapshot captures every indicator value for one ticker at one instant.
// Immutable once produced; embedded into signals and persisted with positions.
type Snapshot struct {
	EMAFast       float64 `json:"ema_fast"`
	EMASlow       float64 `json:"ema_slow"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BollUpper     float64 `json:"boll_upper"`
	BollMiddle    float64 `json:"boll_middle"`
	BollLower     float64 `json:"boll_lower"`
	VolumeRatio   float64 `json:"volume_ratio"` // recent volume vs trailing average, percent
	Price         float64 `json:"price"`
}

// Params holds the indicator periods. Zero values are replaced by defaults.
type Params struct {
	EMAFast    int
	EMASlow    int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	BollPeriod int
	BollStdDev float64
}

// DefaultParams mirrors the production tuning: EMA(5,20), RSI(14),
// MACD(12,26,9), Bollinger(20, 2).
func DefaultParams() Params {
	return Params{
		EMAFast:    5,
		EMASlow:    20,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BollPeriod: 20,
		BollStdDev: 2,
	}
}

func (p Params) minBars() int {
	// MACD is the hungriest consumer of history.
	return p.MACDSlow + p.MACDSignal
}

type window struct {
	prices  []float64
	volumes []float64
}

// Engine maintains per-ticker price/volume windows and computes snapshots.
type Engine struct {
	mu      sync.Mutex
	windows map[string]*window
	params  Params
	maxBars int
}

// NewEngine builds an indicator engine keeping up to maxBars bars per ticker.
func NewEngine(params Params, maxBars int) *Engine {
	def := DefaultParams()
	if params.EMAFast <= 0 {
		params.EMAFast = def.EMAFast
	}
	if params.EMASlow <= 0 {
		params.EMASlow = def.EMASlow
	}
	if params.RSIPeriod <= 0 {
		params.RSIPeriod = def.RSIPeriod
	}
	if params.MACDFast <= 0 {
		params.MACDFast = def.MACDFast
	}
	if params.MACDSlow <= 0 {
		params.MACDSlow = def.MACDSlow
	}
	if params.MACDSignal <= 0 {
		params.MACDSignal = def.MACDSignal
	}
	if params.BollPeriod <= 0 {
		params.BollPeriod = def.BollPeriod
	}
	if params.BollStdDev <= 0 {
		params.BollStdDev = def.BollStdDev
	}
	if maxBars < params.minBars() {
		maxBars = params.minBars() * 2
	}
	return &Engine{
		windows: make(map[string]*window),
		params:  params,
		maxBars: maxBars,
	}
}

// Update ingests a new price/volume bar for a ticker.
func (e *Engine) Update(ticker string, price, volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.windows[ticker]
	if w == nil {
		w = &window{}
		e.windows[ticker] = w
	}
	w.prices = append(w.prices, price)
	w.volumes = append(w.volumes, volume)
	if len(w.prices) > e.maxBars {
		w.prices = w.prices[len(w.prices)-e.maxBars:]
		w.volumes = w.volumes[len(w.volumes)-e.maxBars:]
	}
}

// BarCount returns how many bars are buffered for a ticker.
func (e *Engine) BarCount(ticker string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w := e.windows[ticker]; w != nil {
		return len(w.prices)
	}
	return 0
}

// Snapshot computes the current indicator snapshot for a ticker.
// Returns ok=false when the window is too short; callers treat that as a
// data-quality skip, never an error.
func (e *Engine) Snapshot(ticker string) (Snapshot, bool) {
	e.mu.Lock()
	w := e.windows[ticker]
	var prices, volumes []float64
	if w != nil {
		prices = append([]float64(nil), w.prices...)
		volumes = append([]float64(nil), w.volumes...)
	}
	e.mu.Unlock()

	if len(prices) < e.params.minBars() {
		return Snapshot{}, false
	}

	macd, ok := MACD(prices, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
	if !ok {
		return Snapshot{}, false
	}
	upper, middle, lower, ok := Bollinger(prices, e.params.BollPeriod, e.params.BollStdDev)
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		EMAFast:       EMA(prices, e.params.EMAFast),
		EMASlow:       EMA(prices, e.params.EMASlow),
		RSI:           RSI(prices, e.params.RSIPeriod),
		MACD:          macd.Line,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		BollUpper:     upper,
		BollMiddle:    middle,
		BollLower:     lower,
		VolumeRatio:   volumeRatio(volumes),
		Price:         prices[len(prices)-1],
	}
	return snap, true
}

// volumeRatio compares the mean of the last 3 bars against the trailing
// average of everything before them, expressed in percent (100 = flat).
func volumeRatio(volumes []float64) float64 {
	if len(volumes) < 5 {
		return 0
	}
	recent := 0.0
	for _, v := range volumes[len(volumes)-3:] {
		recent += v
	}
	recent /= 3

	base := 0.0
	n := len(volumes) - 3
	for _, v := range volumes[:n] {
		base += v
	}
	base /= float64(n)
	if base <= 0 {
		return 0
	}
	return recent / base * 100
}
