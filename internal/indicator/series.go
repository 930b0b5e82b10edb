package indicator

import "math"

// Back returns series[len-1-n], reporting false when it is out of range or NaN.
func Back(series []float64, n int) (float64, bool) {
	i := len(series) - 1 - n
	if i < 0 || i >= len(series) {
		return math.NaN(), false
	}
	v := series[i]
	return v, !math.IsNaN(v)
}

func Last(series []float64) (float64, bool) {
	return Back(series, 0)
}
