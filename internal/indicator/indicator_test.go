package indicator

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestSMA(t *testing.T) {
	out, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDeltaSlice(t, []float64{2, 3, 4}, out[2:], 1e-9)
}

func TestEMASeedsWithSimpleAverage(t *testing.T) {
	out, err := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDeltaSlice(t, []float64{2, 3, 4}, out[2:], 1e-9)
}

func TestEMASkipsLeadingNaN(t *testing.T) {
	in := []float64{math.NaN(), math.NaN(), 2, 2, 2, 4}
	out, err := EMA(in, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[3]))
	assert.InDelta(t, 2.0, out[4], 1e-9)
	assert.InDelta(t, 3.0, out[5], 1e-9)

	_, err = EMA([]float64{math.NaN(), math.NaN(), 1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestIndicatorsRejectShortSeries(t *testing.T) {
	short := ramp(5)
	checks := map[string]func() error{
		"sma":  func() error { _, err := SMA(short, 6); return err },
		"ema":  func() error { _, err := EMA(short, 6); return err },
		"rsi":  func() error { _, err := RSI(short, 14); return err },
		"macd": func() error { _, err := MACD(short, 26, 12, 9); return err },
		"empty": func() error {
			_, err := SMA(nil, 1)
			return err
		},
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			err := check()
			var insufficient *InsufficientDataError
			require.True(t, errors.As(err, &insufficient), "expected InsufficientDataError, got %v", err)
			assert.ErrorIs(t, err, ErrInsufficientData)
			assert.Greater(t, insufficient.Required, insufficient.Available)
		})
	}
}

func TestInvalidPeriod(t *testing.T) {
	_, err := SMA(ramp(10), 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = MACD(ramp(30), 12, 26, 9)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRSIWarmupAndRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prices := make([]float64, 300)
	price := 100.0
	for i := range prices {
		price += rng.NormFloat64()
		prices[i] = price
	}

	out, err := RSI(prices, 14)
	require.NoError(t, err)
	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(out[i]), "index %d should be warm-up", i)
	}
	for i := 14; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], 0.0)
		assert.LessOrEqual(t, out[i], 100.0)
	}
}

func TestRSIExtremes(t *testing.T) {
	up, err := RSI(ramp(20), 14)
	require.NoError(t, err)
	last, ok := Last(up)
	require.True(t, ok)
	assert.Equal(t, 100.0, last)

	down := ramp(20)
	for i, j := 0, len(down)-1; i < j; i, j = i+1, j-1 {
		down[i], down[j] = down[j], down[i]
	}
	out, err := RSI(down, 14)
	require.NoError(t, err)
	last, _ = Last(out)
	assert.Equal(t, 0.0, last)
}

func TestRSIFlatThenJump(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 10
	}
	prices[len(prices)-1] = 12

	out, err := RSI(prices, 14)
	require.NoError(t, err)
	prev, _ := Back(out, 1)
	last, _ := Last(out)
	assert.Equal(t, 50.0, prev)
	assert.Greater(t, last, 50.0)
}

func TestMACDWarmup(t *testing.T) {
	res, err := MACD(ramp(40), 26, 12, 9)
	require.NoError(t, err)
	require.Len(t, res.MACD, 40)
	assert.True(t, math.IsNaN(res.MACD[24]))
	assert.False(t, math.IsNaN(res.MACD[25]))

	warmup := MACDWarmup(26, 9)
	assert.True(t, math.IsNaN(res.Signal[warmup-1]))
	assert.False(t, math.IsNaN(res.Signal[warmup]))
	assert.InDelta(t, res.MACD[39]-res.Signal[39], res.Histogram[39], 1e-12)
}

func TestMACDShortSignalLine(t *testing.T) {
	res, err := MACD(ramp(28), 26, 12, 9)
	require.NoError(t, err)
	_, ok := Last(res.MACD)
	assert.True(t, ok)
	_, ok = Last(res.Signal)
	assert.False(t, ok)
}

func TestBack(t *testing.T) {
	s := []float64{math.NaN(), 1, 2}
	v, ok := Back(s, 1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = Back(s, 2)
	assert.False(t, ok)
	_, ok = Back(s, 5)
	assert.False(t, ok)
}
