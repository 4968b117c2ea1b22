package indicators

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD computes MACD(fast, slow, signal) over the series. Requires at least
// slow+signal values; returns ok=false otherwise.
func MACD(values []float64, fast, slow, signal int) (MACDResult, bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal {
		return MACDResult{}, false
	}

	fastSeries := EMASeries(values, fast)
	slowSeries := EMASeries(values, slow)
	if len(fastSeries) == 0 || len(slowSeries) == 0 {
		return MACDResult{}, false
	}

	// Align both EMA series on the slow series start.
	offset := len(fastSeries) - len(slowSeries)
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	sigSeries := EMASeries(line, signal)
	if len(sigSeries) == 0 {
		return MACDResult{}, false
	}

	res := MACDResult{
		Line:   line[len(line)-1],
		Signal: sigSeries[len(sigSeries)-1],
	}
	res.Histogram = res.Line - res.Signal
	return res, true
}
