package indicators

import "math"

// Bollinger computes the Bollinger bands (middle SMA ± stdDev standard
// deviations) over the last period values. Returns ok=false on short input.
func Bollinger(values []float64, period int, stdDev float64) (upper, middle, lower float64, ok bool) {
	if period <= 0 || len(values) < period {
		return 0, 0, 0, false
	}

	middle = SMA(values, period)
	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		d := values[i] - middle
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(period))

	return middle + stdDev*sigma, middle, middle - stdDev*sigma, true
}
