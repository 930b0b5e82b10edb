package strategy

import (
	"signalbot/internal/indicator"
	"signalbot/internal/md"
)

// MACDCrossover trades the MACD line crossing its signal line between the
// previous and the latest bar.
type MACDCrossover struct {
	Slow int
	Fast int
	Sign int
}

type MACDCrossEvidence struct {
	MACD       float64 `json:"macd"`
	Signal     float64 `json:"macd_signal"`
	PrevMACD   float64 `json:"prev_macd"`
	PrevSignal float64 `json:"prev_macd_signal"`
}

func (e MACDCrossEvidence) Values() map[string]float64 {
	return map[string]float64{
		"macd":             e.MACD,
		"macd_signal":      e.Signal,
		"prev_macd":        e.PrevMACD,
		"prev_macd_signal": e.PrevSignal,
	}
}

func (MACDCrossEvidence) evidence() {}

func (s MACDCrossover) Name() string { return "macd_crossover" }

func (s MACDCrossover) Evaluate(series md.Series) (Signal, error) {
	if err := need(s.Name(), series, indicator.MACDWarmup(s.Slow, s.Sign)+2); err != nil {
		return Signal{}, err
	}
	macd, err := indicator.MACD(series.Closes(), s.Slow, s.Fast, s.Sign)
	if err != nil {
		return Signal{}, err
	}

	var ev MACDCrossEvidence
	if ev.MACD, err = back("macd", macd.MACD, 0); err != nil {
		return Signal{}, err
	}
	if ev.Signal, err = back("macd_signal", macd.Signal, 0); err != nil {
		return Signal{}, err
	}
	if ev.PrevMACD, err = back("macd", macd.MACD, 1); err != nil {
		return Signal{}, err
	}
	if ev.PrevSignal, err = back("macd_signal", macd.Signal, 1); err != nil {
		return Signal{}, err
	}

	switch {
	case ev.PrevMACD < ev.PrevSignal && ev.MACD > ev.Signal:
		return newSignal(s.Name(), series, Buy, "macd_crossed_above_signal", ev), nil
	case ev.PrevMACD > ev.PrevSignal && ev.MACD < ev.Signal:
		return newSignal(s.Name(), series, Sell, "macd_crossed_below_signal", ev), nil
	default:
		return newSignal(s.Name(), series, Hold, "no_crossover", ev), nil
	}
}

// EMACrossover buys when the short EMA reaches the long EMA while RSI sits
// inside (RSILower, RSIUpper), and sells when the long EMA reaches the short one.
// Equality counts as crossed for the newly leading average.
type EMACrossover struct {
	Short     int
	Long      int
	RSIWindow int
	RSILower  float64
	RSIUpper  float64
}

type EMACrossEvidence struct {
	Short     float64 `json:"ema_short"`
	Long      float64 `json:"ema_long"`
	PrevShort float64 `json:"prev_ema_short"`
	PrevLong  float64 `json:"prev_ema_long"`
	RSI       float64 `json:"rsi"`
}

func (e EMACrossEvidence) Values() map[string]float64 {
	return map[string]float64{
		"ema_short":      e.Short,
		"ema_long":       e.Long,
		"prev_ema_short": e.PrevShort,
		"prev_ema_long":  e.PrevLong,
		"rsi":            e.RSI,
	}
}

func (EMACrossEvidence) evidence() {}

func (s EMACrossover) Name() string { return "ema_crossover" }

func (s EMACrossover) Evaluate(series md.Series) (Signal, error) {
	required := max(s.Short+1, s.Long+1, s.RSIWindow+1)
	if err := need(s.Name(), series, required); err != nil {
		return Signal{}, err
	}
	closes := series.Closes()

	short, err := indicator.EMA(closes, s.Short)
	if err != nil {
		return Signal{}, err
	}
	long, err := indicator.EMA(closes, s.Long)
	if err != nil {
		return Signal{}, err
	}
	rsi, err := indicator.RSI(closes, s.RSIWindow)
	if err != nil {
		return Signal{}, err
	}

	var ev EMACrossEvidence
	if ev.Short, err = back("ema_short", short, 0); err != nil {
		return Signal{}, err
	}
	if ev.PrevShort, err = back("ema_short", short, 1); err != nil {
		return Signal{}, err
	}
	if ev.Long, err = back("ema_long", long, 0); err != nil {
		return Signal{}, err
	}
	if ev.PrevLong, err = back("ema_long", long, 1); err != nil {
		return Signal{}, err
	}
	if ev.RSI, err = back("rsi", rsi, 0); err != nil {
		return Signal{}, err
	}

	switch {
	case ev.PrevShort <= ev.PrevLong && ev.Short >= ev.Long && s.RSILower < ev.RSI && ev.RSI < s.RSIUpper:
		return newSignal(s.Name(), series, Buy, "short_ema_crossed_above_long", ev), nil
	case ev.PrevLong <= ev.PrevShort && ev.Long >= ev.Short:
		return newSignal(s.Name(), series, Sell, "long_ema_crossed_above_short", ev), nil
	default:
		return newSignal(s.Name(), series, Hold, "no_crossover", ev), nil
	}
}
