package indicator

import "math"

// SMA returns the trailing simple moving average of values. The first period-1
// entries are NaN.
func SMA(values []float64, period int) ([]float64, error) {
	if err := validate("sma", values, period); err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA returns the exponential moving average of values with smoothing factor
// 2/(period+1), seeded with the simple average of the first period values.
// Leading NaN entries in values are skipped, so EMA can be chained onto the
// output of another indicator.
func EMA(values []float64, period int) ([]float64, error) {
	if err := validate("ema", values, period); err != nil {
		return nil, err
	}
	start := firstDefined(values)
	if defined := len(values) - start; defined < period {
		return nil, &InsufficientDataError{Indicator: "ema", Required: period, Available: defined}
	}
	return ema(values, period), nil
}

func ema(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	start := firstDefined(values)
	seed := start + period - 1
	if seed >= len(values) {
		return out
	}

	sum := 0.0
	for _, v := range values[start : seed+1] {
		sum += v
	}
	prev := sum / float64(period)
	out[seed] = prev

	alpha := 2.0 / float64(period+1)
	for i := seed + 1; i < len(values); i++ {
		prev += alpha * (values[i] - prev)
		out[i] = prev
	}
	return out
}

func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
