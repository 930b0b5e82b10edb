package strategy

import (
	"fmt"

	"signalbot/internal/indicator"
	"signalbot/internal/md"
)

// Bullish is a screen rather than a trading rule: it flags symbols whose short
// EMA has stayed above the long EMA for the last Sessions bars with RSI above
// RSIMin. It never emits SELL.
type Bullish struct {
	Short     int
	Long      int
	RSIWindow int
	Sessions  int
	RSIMin    float64
}

type BullishEvidence struct {
	Short    float64 `json:"ema_short"`
	Long     float64 `json:"ema_long"`
	RSI      float64 `json:"rsi"`
	Sessions int     `json:"sessions"`
}

func (e BullishEvidence) Values() map[string]float64 {
	return map[string]float64{
		"ema_short": e.Short,
		"ema_long":  e.Long,
		"rsi":       e.RSI,
		"sessions":  float64(e.Sessions),
	}
}

func (BullishEvidence) evidence() {}

func (s Bullish) Name() string { return "bullish" }

func (s Bullish) Evaluate(series md.Series) (Signal, error) {
	if s.Sessions <= 0 {
		return Signal{}, fmt.Errorf("%s: %w: sessions=%d", s.Name(), indicator.ErrInvalidPeriod, s.Sessions)
	}
	required := max(s.Short+s.Sessions-1, s.Long+s.Sessions-1, s.RSIWindow+1)
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

	ev := BullishEvidence{Sessions: s.Sessions}
	if ev.RSI, err = back("rsi", rsi, 0); err != nil {
		return Signal{}, err
	}
	above := true
	for n := s.Sessions - 1; n >= 0; n-- {
		sv, err := back("ema_short", short, n)
		if err != nil {
			return Signal{}, err
		}
		lv, err := back("ema_long", long, n)
		if err != nil {
			return Signal{}, err
		}
		ev.Short, ev.Long = sv, lv
		if sv <= lv {
			above = false
		}
	}

	if above && ev.RSI > s.RSIMin {
		return newSignal(s.Name(), series, Buy, "sustained_uptrend", ev), nil
	}
	return newSignal(s.Name(), series, Hold, "no_trend", ev), nil
}
