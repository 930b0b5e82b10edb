package indicator

// RSI computes the Wilder-smoothed relative strength index. The first window
// entries are NaN; the average gain and loss are seeded with the mean of the
// first window price changes.
func RSI(values []float64, window int) ([]float64, error) {
	if err := validate("rsi", values, window); err != nil {
		return nil, err
	}
	out := nanSeries(len(values))
	if len(values) <= window {
		return out, nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		gain, loss := change(values[i-1], values[i])
		avgGain += gain
		avgLoss += loss
	}
	p := float64(window)
	avgGain /= p
	avgLoss /= p
	out[window] = relativeStrength(avgGain, avgLoss)

	for i := window + 1; i < len(values); i++ {
		gain, loss := change(values[i-1], values[i])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = relativeStrength(avgGain, avgLoss)
	}
	return out, nil
}

func change(prev, cur float64) (gain, loss float64) {
	delta := cur - prev
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func relativeStrength(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			// flat window
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
