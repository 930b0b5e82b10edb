package strategy

import (
	"signalbot/internal/indicator"
	"signalbot/internal/md"
)

// RSIMACD buys an oversold market whose MACD is above its signal line and
// sells an overbought one whose MACD is below it. Only the latest bar is read.
type RSIMACD struct {
	RSIWindow int
	RSIBuy    float64
	RSISell   float64
	Slow      int
	Fast      int
	Sign      int
}

type RSIMACDEvidence struct {
	RSI    float64 `json:"rsi"`
	MACD   float64 `json:"macd"`
	Signal float64 `json:"macd_signal"`
}

func (e RSIMACDEvidence) Values() map[string]float64 {
	return map[string]float64{"rsi": e.RSI, "macd": e.MACD, "macd_signal": e.Signal}
}

func (RSIMACDEvidence) evidence() {}

func (s RSIMACD) Name() string { return "rsi_macd" }

func (s RSIMACD) Evaluate(series md.Series) (Signal, error) {
	required := max(s.RSIWindow+1, indicator.MACDWarmup(s.Slow, s.Sign)+1)
	if err := need(s.Name(), series, required); err != nil {
		return Signal{}, err
	}
	closes := series.Closes()

	rsi, err := indicator.RSI(closes, s.RSIWindow)
	if err != nil {
		return Signal{}, err
	}
	macd, err := indicator.MACD(closes, s.Slow, s.Fast, s.Sign)
	if err != nil {
		return Signal{}, err
	}

	var ev RSIMACDEvidence
	if ev.RSI, err = back("rsi", rsi, 0); err != nil {
		return Signal{}, err
	}
	if ev.MACD, err = back("macd", macd.MACD, 0); err != nil {
		return Signal{}, err
	}
	if ev.Signal, err = back("macd_signal", macd.Signal, 0); err != nil {
		return Signal{}, err
	}

	switch {
	case ev.RSI < s.RSIBuy && ev.MACD > ev.Signal:
		return newSignal(s.Name(), series, Buy, "rsi_oversold_macd_above_signal", ev), nil
	case ev.RSI > s.RSISell && ev.MACD < ev.Signal:
		return newSignal(s.Name(), series, Sell, "rsi_overbought_macd_below_signal", ev), nil
	default:
		return newSignal(s.Name(), series, Hold, "no_signal", ev), nil
	}
}
