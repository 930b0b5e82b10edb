package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signalbot/internal/md"
	"signalbot/internal/metrics"
	"signalbot/internal/strategy"
	"signalbot/internal/trade"
	"signalbot/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Bars is where the engine reads price history from; md.Cache satisfies it.
type Bars interface {
	GetOrFetch(ctx context.Context, key md.Key) (md.Series, error)
}

type Config struct {
	Workers      int
	Trade        bool
	LookbackDays int
	Timeframe    string

	Buy     trade.BuyRequest
	Sell    trade.SellRequest
	Manager trade.Config
}

// Engine evaluates one strategy across a ticker list and, when trading is
// enabled, acts on the resulting signals through one trade.Manager per ticker.
type Engine struct {
	cfg       Config
	strategy  strategy.Strategy
	bars      Bars
	brokerage trade.Brokerage
	quotes    trade.QuoteProvider
	metrics   *metrics.Metrics
	decisions *DecisionLogger
	runID     string
	now       func() time.Time

	mu       sync.Mutex
	managers map[string]*trade.Manager
}

// New wires an engine. brokerage and quotes may be nil when cfg.Trade is off;
// decisions and m may be nil.
func New(cfg Config, strat strategy.Strategy, bars Bars, brokerage trade.Brokerage, quotes trade.QuoteProvider, decisions *DecisionLogger, m *metrics.Metrics, runID string) (*Engine, error) {
	if strat == nil {
		return nil, errors.New("engine: strategy is required")
	}
	if bars == nil {
		return nil, errors.New("engine: bar source is required")
	}
	if cfg.Trade && (brokerage == nil || quotes == nil) {
		return nil, errors.New("engine: trading needs a brokerage and a quote provider")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 120
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1Day"
	}
	if cfg.Manager.ClientOrderPrefix == "" {
		cfg.Manager.ClientOrderPrefix = runID
	}
	return &Engine{
		cfg:       cfg,
		strategy:  strat,
		bars:      bars,
		brokerage: brokerage,
		quotes:    quotes,
		metrics:   m,
		decisions: decisions,
		runID:     runID,
		now:       time.Now,
		managers:  make(map[string]*trade.Manager),
	}, nil
}

func (e *Engine) RunID() string {
	return e.runID
}

// Run processes every ticker on a bounded pool of workers and returns one
// result per ticker in input order. A failing ticker is reported as ERROR and
// never stops the others.
func (e *Engine) Run(ctx context.Context, tickers []string) Report {
	started := e.now()
	results := make([]Result, len(tickers))
	key := e.window(started)

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(e.cfg.Workers, len(tickers))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.process(ctx, tickers[i], key)
			}
		}()
	}

	next := 0
feed:
	for ; next < len(tickers); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(tickers); i++ {
		results[i] = Result{Ticker: tickers[i], Action: ActionError, Err: ctx.Err()}
	}

	report := Report{
		RunID:    e.runID,
		Strategy: e.strategy.Name(),
		Started:  started,
		Duration: e.now().Sub(started),
		Results:  results,
	}
	e.metrics.ObserveRun(report.Duration)
	slog.Info("run complete", "run_id", e.runID, "strategy", report.Strategy, "tickers", len(tickers), "duration", report.Duration, "summary", report.Summary().String())
	return report
}

// window is the bar request shared by every ticker of a run. Dates are
// truncated to the day so repeated runs on one day hit the same cache keys.
func (e *Engine) window(now time.Time) md.Key {
	end := now.UTC().Truncate(24 * time.Hour)
	return md.Key{
		Start:     end.AddDate(0, 0, -e.cfg.LookbackDays),
		End:       end,
		Timeframe: e.cfg.Timeframe,
	}
}

func (e *Engine) process(ctx context.Context, ticker string, key md.Key) Result {
	ctx, span := tracing.StartSpan(ctx, "evaluate_ticker", trace.WithAttributes(
		attribute.String("ticker", ticker),
		attribute.String("strategy", e.strategy.Name()),
	))
	defer span.End()
	log := slog.With(append([]any{"ticker", ticker, "run_id", e.runID}, tracing.LogAttrs(ctx)...)...)

	result := e.evaluate(ctx, log, ticker, key)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	span.SetAttributes(attribute.String("action", string(result.Action)))

	if result.Action == ActionError {
		e.metrics.TickerError()
		log.Error("ticker failed", "error", result.Err)
	}
	e.decisions.Append(e.decision(result))
	return result
}

func (e *Engine) evaluate(ctx context.Context, log *slog.Logger, ticker string, key md.Key) Result {
	key.Symbol = ticker
	series, err := e.bars.GetOrFetch(ctx, key)
	if err != nil {
		return Result{Ticker: ticker, Action: ActionError, Err: fmt.Errorf("fetch bars: %w", err)}
	}

	sig, err := e.strategy.Evaluate(series)
	if err != nil {
		return Result{Ticker: ticker, Action: ActionError, Err: fmt.Errorf("evaluate %s: %w", e.strategy.Name(), err)}
	}
	e.metrics.Signal(sig.Strategy, string(sig.Action))
	log.Info("signal", "strategy", sig.Strategy, "action", sig.Action, "reason", sig.Reason, "bar_time", sig.BarTime.Format(time.DateOnly), "indicators", sig.Indicators.Values())

	result := Result{Ticker: ticker, Action: sig.Action, Signal: &sig}
	if !e.cfg.Trade || sig.Action == strategy.Hold {
		return result
	}

	manager := e.manager(ticker)
	var outcome trade.Outcome
	switch sig.Action {
	case strategy.Buy:
		outcome = manager.SubmitBuy(ctx, e.cfg.Buy)
	case strategy.Sell:
		if e.cfg.Sell.Qty == nil && e.cfg.Sell.Value == nil {
			outcome = manager.ClosePosition(ctx)
		} else {
			outcome = manager.SubmitSell(ctx, e.cfg.Sell)
		}
	}
	result.Outcome = &outcome
	log.Info("trade outcome", "action", sig.Action, "state", outcome.State, "error", outcome.Err)
	return result
}

// manager returns the ticker's Manager, creating it on first use so its trade
// history survives across scheduled runs.
func (e *Engine) manager(ticker string) *trade.Manager {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.managers[ticker]
	if !ok {
		m = trade.NewManager(ticker, e.brokerage, e.quotes, e.cfg.Manager, e.metrics)
		e.managers[ticker] = m
	}
	return m
}

// History returns the orders placed for ticker in this process.
func (e *Engine) History(ticker string) []trade.Order {
	e.mu.Lock()
	m, ok := e.managers[ticker]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return m.History()
}

func (e *Engine) decision(r Result) Decision {
	d := Decision{
		RunID:     e.runID,
		Timestamp: e.now().UTC(),
		Symbol:    r.Ticker,
		Strategy:  e.strategy.Name(),
		Action:    r.Action,
		Result:    r.resultLabel(e.cfg.Trade),
	}
	if r.Signal != nil {
		d.BarTime = r.Signal.BarTime
		d.Reason = r.Signal.Reason
		d.Indicators = r.Signal.Indicators.Values()
	}
	if r.Outcome != nil && r.Outcome.Order != nil {
		d.OrderID = r.Outcome.Order.ID
		d.ClientOrderID = r.Outcome.Order.ClientOrderID
		d.FilledAvgPrice = r.Outcome.Order.FilledAvgPrice
	}
	if err := r.cause(); err != nil {
		d.Error = err.Error()
	}
	return d
}
