package strategy

import (
	"fmt"
	"sort"
	"time"

	"signalbot/internal/indicator"
	"signalbot/internal/md"
)

type Action string

const (
	Hold Action = "HOLD"
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Signal is the decision a strategy made on the latest bar of a series,
// together with the indicator values it was based on.
type Signal struct {
	Ticker     string    `json:"ticker"`
	Strategy   string    `json:"strategy"`
	Action     Action    `json:"action"`
	Reason     string    `json:"reason"`
	Indicators Evidence  `json:"indicators"`
	BarTime    time.Time `json:"bar_time"`
}

// Evidence is implemented by the per-strategy indicator snapshots only.
type Evidence interface {
	Values() map[string]float64
	evidence()
}

type Strategy interface {
	Name() string
	Evaluate(series md.Series) (Signal, error)
}

// Params carries strategy settings from config. Zero fields take the
// strategy's default.
type Params struct {
	RSIWindow int     `yaml:"rsi_window"`
	RSIBuy    float64 `yaml:"rsi_buy"`
	RSISell   float64 `yaml:"rsi_sell"`
	RSILower  float64 `yaml:"rsi_lower"`
	RSIUpper  float64 `yaml:"rsi_upper"`
	RSIMin    float64 `yaml:"rsi_min"`
	Slow      int     `yaml:"slow"`
	Fast      int     `yaml:"fast"`
	Sign      int     `yaml:"signal"`
	Short     int     `yaml:"short"`
	Long      int     `yaml:"long"`
	Sessions  int     `yaml:"sessions"`
}

var registry = map[string]func(Params) Strategy{
	"rsi_macd": func(p Params) Strategy {
		return RSIMACD{
			RSIWindow: orInt(p.RSIWindow, 14),
			RSIBuy:    orFloat(p.RSIBuy, 30),
			RSISell:   orFloat(p.RSISell, 70),
			Slow:      orInt(p.Slow, 26),
			Fast:      orInt(p.Fast, 12),
			Sign:      orInt(p.Sign, 9),
		}
	},
	"macd_crossover": func(p Params) Strategy {
		return MACDCrossover{
			Slow: orInt(p.Slow, 26),
			Fast: orInt(p.Fast, 12),
			Sign: orInt(p.Sign, 9),
		}
	},
	"ema_crossover": func(p Params) Strategy {
		return EMACrossover{
			Short:     orInt(p.Short, 10),
			Long:      orInt(p.Long, 34),
			RSIWindow: orInt(p.RSIWindow, 14),
			RSILower:  orFloat(p.RSILower, 50),
			RSIUpper:  orFloat(p.RSIUpper, 75),
		}
	},
	"bullish": func(p Params) Strategy {
		return Bullish{
			Short:     orInt(p.Short, 10),
			Long:      orInt(p.Long, 34),
			RSIWindow: orInt(p.RSIWindow, 14),
			Sessions:  orInt(p.Sessions, 3),
			RSIMin:    orFloat(p.RSIMin, 50),
		}
	},
}

// New returns the named strategy configured from p.
func New(name string, p Params) (Strategy, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", name, Names())
	}
	return build(p), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newSignal(name string, series md.Series, action Action, reason string, ev Evidence) Signal {
	return Signal{
		Ticker:     series.Symbol,
		Strategy:   name,
		Action:     action,
		Reason:     reason,
		Indicators: ev,
		BarTime:    series.Last().Timestamp,
	}
}

// need fails with an InsufficientDataError when the series has fewer than required bars.
func need(name string, series md.Series, required int) error {
	if err := series.Validate(); err != nil {
		return err
	}
	if series.Len() < required {
		return &indicator.InsufficientDataError{Indicator: name, Required: required, Available: series.Len()}
	}
	return nil
}

// back reads series n bars from the end; undefined values surface as an
// InsufficientDataError naming the indicator.
func back(name string, series []float64, n int) (float64, error) {
	v, ok := indicator.Back(series, n)
	if !ok {
		return 0, &indicator.InsufficientDataError{Indicator: name, Required: n + 1, Available: len(series)}
	}
	return v, nil
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
