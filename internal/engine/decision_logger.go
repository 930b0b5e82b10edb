package engine

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"signalbot/internal/strategy"
)

// Decision is one line of the decision log.
type Decision struct {
	RunID          string             `json:"run_id"`
	Timestamp      time.Time          `json:"timestamp"`
	BarTime        time.Time          `json:"bar_time,omitempty"`
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	Action         strategy.Action    `json:"action"`
	Reason         string             `json:"reason,omitempty"`
	Indicators     map[string]float64 `json:"indicators,omitempty"`
	Result         string             `json:"result"`
	Error          string             `json:"error,omitempty"`
	OrderID        string             `json:"order_id,omitempty"`
	ClientOrderID  string             `json:"client_order_id,omitempty"`
	FilledAvgPrice *float64           `json:"filled_avg_price,omitempty"`
}

// DecisionLogger appends decisions to a newline-delimited JSON file. A nil
// logger discards everything.
type DecisionLogger struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) Append(decision Decision) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		slog.Error("failed to marshal decision", "symbol", decision.Symbol, "error", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		slog.Error("failed to write decision", "symbol", decision.Symbol, "error", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		slog.Error("failed to flush decision log", "error", err)
	}
}

func (d *DecisionLogger) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
