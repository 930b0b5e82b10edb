package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"signalbot/internal/strategy"
	"signalbot/internal/trade"
)

const ActionError strategy.Action = "ERROR"

// Result is the outcome of one ticker in a run. Signal is nil when the
// ticker failed before a signal was produced; Outcome is nil unless a trade
// was attempted.
type Result struct {
	Ticker  string
	Action  strategy.Action
	Signal  *strategy.Signal
	Outcome *trade.Outcome
	Err     error
}

func (r Result) cause() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Outcome != nil {
		return r.Outcome.Err
	}
	return nil
}

func (r Result) resultLabel(trading bool) string {
	switch {
	case r.Action == ActionError:
		return "error"
	case r.Outcome != nil:
		return string(r.Outcome.State)
	case r.Action == strategy.Hold:
		return "hold"
	case !trading:
		return "signal_only"
	default:
		return "no_action"
	}
}

type Report struct {
	RunID    string
	Strategy string
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Matching returns the tickers whose action equals action, in input order.
func (r Report) Matching(action strategy.Action) []string {
	var out []string
	for _, res := range r.Results {
		if res.Action == action {
			out = append(out, res.Ticker)
		}
	}
	return out
}

type Summary struct {
	Actions  map[strategy.Action]int
	Outcomes map[trade.State]int
}

func (r Report) Summary() Summary {
	s := Summary{
		Actions:  make(map[strategy.Action]int),
		Outcomes: make(map[trade.State]int),
	}
	for _, res := range r.Results {
		s.Actions[res.Action]++
		if res.Outcome != nil {
			s.Outcomes[res.Outcome.State]++
		}
	}
	return s
}

func (s Summary) String() string {
	parts := make([]string, 0, len(s.Actions)+len(s.Outcomes))
	for action, n := range s.Actions {
		parts = append(parts, fmt.Sprintf("%s=%d", action, n))
	}
	for state, n := range s.Outcomes {
		parts = append(parts, fmt.Sprintf("%s=%d", state, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
