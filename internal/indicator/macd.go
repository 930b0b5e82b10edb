package indicator

import (
	"fmt"
	"math"
)

type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD returns the MACD line (EMA fast minus EMA slow) and its signal line (EMA
// of the MACD line over signal periods). The MACD line is defined from index
// slow-1 and the signal line from index slow+signal-2; when the series is too
// short for the signal line it is returned as all NaN.
func MACD(values []float64, slow, fast, signal int) (MACDResult, error) {
	if err := validate("macd", values, slow); err != nil {
		return MACDResult{}, err
	}
	if fast <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("macd: %w: fast=%d signal=%d", ErrInvalidPeriod, fast, signal)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("macd: %w: fast %d must be shorter than slow %d", ErrInvalidPeriod, fast, slow)
	}

	emaFast := ema(values, fast)
	emaSlow := ema(values, slow)
	line := nanSeries(len(values))
	for i := range values {
		if math.IsNaN(emaFast[i]) || math.IsNaN(emaSlow[i]) {
			continue
		}
		line[i] = emaFast[i] - emaSlow[i]
	}

	sig := ema(line, signal)
	hist := nanSeries(len(values))
	for i := range values {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}, nil
}

// MACDWarmup is the number of leading bars without a signal-line value.
func MACDWarmup(slow, signal int) int {
	return slow + signal - 2
}
