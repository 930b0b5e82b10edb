package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"signalbot/internal/broker"
	"signalbot/internal/metrics"
	"signalbot/internal/retry"
	"signalbot/internal/risk"
	"signalbot/internal/state"

	"github.com/google/uuid"
)

type Order = state.Order

// Brokerage is the subset of the brokerage API the manager needs.
type Brokerage interface {
	Position(ctx context.Context, symbol string) (broker.Position, bool, error)
	OpenOrders(ctx context.Context, symbol string) ([]broker.OrderRef, error)
	SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderRef, error)
	OrderStatus(ctx context.Context, orderID string) (broker.OrderStatus, error)
	ClosePosition(ctx context.Context, symbol string) (broker.OrderRef, error)
}

type QuoteProvider interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

type Config struct {
	Policy            retry.Policy
	TimeInForce       broker.TimeInForce
	ConfirmProtective bool
	ClientOrderPrefix string

	MaxQty      int
	MaxNotional float64
	Cooldown    time.Duration
	KillSwitch  bool
}

type BuyRequest struct {
	Qty           *int
	Value         *float64
	StopLossPct   *float64
	TakeProfitPct *float64
}

type SellRequest struct {
	Qty   *int
	Value *float64
}

// Manager places and confirms orders for a single symbol and keeps the trade
// history of that symbol for the life of the process.
type Manager struct {
	symbol  string
	broker  Brokerage
	quotes  QuoteProvider
	cfg     Config
	gate    risk.Gate
	history *state.TradeHistory
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewManager(symbol string, brokerage Brokerage, quotes QuoteProvider, cfg Config, m *metrics.Metrics) *Manager {
	if cfg.TimeInForce == "" {
		cfg.TimeInForce = broker.GTC
	}
	return &Manager{
		symbol:  symbol,
		broker:  brokerage,
		quotes:  quotes,
		cfg:     cfg,
		history: state.NewTradeHistory(),
		metrics: m,
		now:     time.Now,
	}
}

func (m *Manager) Symbol() string {
	return m.symbol
}

func (m *Manager) History() []Order {
	return m.history.Orders()
}

// ResolveQuantity returns qty when given, otherwise the number of whole shares
// value buys at the latest quoted price.
func (m *Manager) ResolveQuantity(ctx context.Context, qty *int, value *float64) (int, error) {
	n, _, err := m.resolve(ctx, qty, value, false)
	return n, err
}

func (m *Manager) resolve(ctx context.Context, qty *int, value *float64, needPrice bool) (int, float64, error) {
	switch {
	case qty != nil:
		if *qty <= 0 {
			return 0, 0, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrderSpec, *qty)
		}
		if !needPrice {
			return *qty, 0, nil
		}
		price, err := m.quotes.LatestPrice(ctx, m.symbol)
		if err != nil {
			return 0, 0, err
		}
		return *qty, price, nil
	case value != nil:
		if *value <= 0 {
			return 0, 0, fmt.Errorf("%w: value must be positive, got %.2f", ErrInvalidOrderSpec, *value)
		}
		price, err := m.quotes.LatestPrice(ctx, m.symbol)
		if err != nil {
			return 0, 0, err
		}
		n := int(math.Floor(*value / price))
		if n < 1 {
			return 0, 0, fmt.Errorf("%w: %.2f buys no shares of %s at %.2f", ErrInvalidOrderSpec, *value, m.symbol, price)
		}
		return n, price, nil
	default:
		return 0, 0, fmt.Errorf("%w: must include value or quantity", ErrInvalidOrderSpec)
	}
}

// SubmitBuy opens a position unless one is already held, then waits for the
// fill and places the requested protective orders off the fill price.
func (m *Manager) SubmitBuy(ctx context.Context, req BuyRequest) Outcome {
	log := slog.With("symbol", m.symbol, "side", broker.Buy)

	_, held, err := m.broker.Position(ctx, m.symbol)
	if err != nil {
		return m.failed(log, "position check failed", err)
	}
	if held {
		log.Info("already owned, no order submitted")
		return Outcome{State: Skipped}
	}

	qty, price, err := m.resolve(ctx, req.Qty, req.Value, m.cfg.MaxNotional > 0)
	if err != nil {
		return m.failed(log, "resolve quantity failed", err)
	}

	open, err := m.broker.OpenOrders(ctx, m.symbol)
	if err != nil {
		return m.failed(log, "open order check failed", err)
	}
	if err := m.vet(risk.Buy, qty, price, len(open)); err != nil {
		return Outcome{State: Rejected, Err: err}
	}

	order, err := m.submit(ctx, broker.OrderRequest{
		Symbol: m.symbol,
		Qty:    qty,
		Side:   broker.Buy,
		Type:   broker.Market,
	})
	if err != nil {
		return m.failed(log, "buy order failed", err)
	}
	log.Info("buy order submitted", "order_id", order.ID, "qty", qty)

	outcome := m.confirm(ctx, order)
	if outcome.State != Filled {
		return outcome
	}
	entry := *outcome.Order.FilledAvgPrice
	log.Info("buy order filled", "order_id", order.ID, "entry_price", entry)

	if req.StopLossPct != nil {
		stop := roundPrice(entry * (1 - *req.StopLossPct))
		if o, _ := m.SubmitStopLoss(ctx, qty, stop); o.ID != "" {
			outcome.Protective = append(outcome.Protective, o)
		}
	}
	if req.TakeProfitPct != nil {
		limit := roundPrice(entry * (1 + *req.TakeProfitPct))
		if o, _ := m.SubmitTakeProfit(ctx, qty, limit); o.ID != "" {
			outcome.Protective = append(outcome.Protective, o)
		}
	}
	return outcome
}

// SubmitSell sells qty (or value worth of) shares of a held position.
func (m *Manager) SubmitSell(ctx context.Context, req SellRequest) Outcome {
	log := slog.With("symbol", m.symbol, "side", broker.Sell)

	pos, held, err := m.broker.Position(ctx, m.symbol)
	if err != nil {
		return m.failed(log, "position check failed", err)
	}
	if !held {
		log.Info("no position held, no order submitted")
		return Outcome{State: Skipped}
	}

	qty, price, err := m.resolve(ctx, req.Qty, req.Value, false)
	if err != nil {
		return m.failed(log, "resolve quantity failed", err)
	}
	if qty > pos.Qty {
		log.Warn("sell quantity exceeds position, clamping", "qty", qty, "position", pos.Qty)
		qty = pos.Qty
	}
	if err := m.vet(risk.Sell, qty, price, 0); err != nil {
		return Outcome{State: Rejected, Err: err}
	}

	order, err := m.submit(ctx, broker.OrderRequest{
		Symbol: m.symbol,
		Qty:    qty,
		Side:   broker.Sell,
		Type:   broker.Market,
	})
	if err != nil {
		return m.failed(log, "sell order failed", err)
	}
	log.Info("sell order submitted", "order_id", order.ID, "qty", qty)
	return m.confirm(ctx, order)
}

// ClosePosition liquidates the whole position through the brokerage's close call.
func (m *Manager) ClosePosition(ctx context.Context) Outcome {
	log := slog.With("symbol", m.symbol, "side", broker.Sell)

	pos, held, err := m.broker.Position(ctx, m.symbol)
	if err != nil {
		return m.failed(log, "position check failed", err)
	}
	if !held {
		log.Info("no position held, nothing to close")
		return Outcome{State: Skipped}
	}
	if err := m.vet(risk.Sell, pos.Qty, 0, 0); err != nil {
		return Outcome{State: Rejected, Err: err}
	}

	ref, err := m.broker.ClosePosition(ctx, m.symbol)
	if err != nil {
		return m.failed(log, "close position failed", err)
	}
	order := Order{
		ID:            ref.ID,
		ClientOrderID: ref.ClientOrderID,
		Symbol:        m.symbol,
		Side:          string(broker.Sell),
		Type:          string(broker.Market),
		Qty:           pos.Qty,
		Status:        state.StatusSubmitted,
		SubmittedAt:   m.now().UTC(),
	}
	m.history.Append(order)
	log.Info("close order submitted", "order_id", order.ID, "qty", pos.Qty)
	return m.confirm(ctx, order)
}

// SubmitStopLoss places a resting stop-limit sell at stopPrice.
func (m *Manager) SubmitStopLoss(ctx context.Context, qty int, stopPrice float64) (Order, error) {
	return m.protective(ctx, "stop loss", broker.OrderRequest{
		Symbol:     m.symbol,
		Qty:        qty,
		Side:       broker.Sell,
		Type:       broker.StopLimit,
		StopPrice:  &stopPrice,
		LimitPrice: &stopPrice,
	})
}

// SubmitTakeProfit places a resting limit sell at limitPrice.
func (m *Manager) SubmitTakeProfit(ctx context.Context, qty int, limitPrice float64) (Order, error) {
	return m.protective(ctx, "take profit", broker.OrderRequest{
		Symbol:     m.symbol,
		Qty:        qty,
		Side:       broker.Sell,
		Type:       broker.Limit,
		LimitPrice: &limitPrice,
	})
}

func (m *Manager) protective(ctx context.Context, kind string, req broker.OrderRequest) (Order, error) {
	log := slog.With("symbol", m.symbol, "kind", kind)
	order, err := m.submit(ctx, req)
	if err != nil {
		log.Error("protective order failed", "error", err)
		return Order{}, err
	}
	log.Info("protective order submitted", "order_id", order.ID, "qty", req.Qty, "stop_price", req.StopPrice, "limit_price", req.LimitPrice)
	if !m.cfg.ConfirmProtective {
		return order, nil
	}
	outcome := m.confirm(ctx, order)
	return *outcome.Order, outcome.Err
}

// CheckOrderStatus polls the brokerage until the order is filled and returns
// the average fill price. Rejected orders stop polling immediately; orders
// still working after the retry budget yield an OrderUnconfirmedError.
func (m *Manager) CheckOrderStatus(ctx context.Context, orderID string) (float64, error) {
	var filled float64
	out := m.cfg.Policy.Poll(ctx, func(ctx context.Context, attempt int) (retry.Result, error) {
		slog.Debug("checking order status", "symbol", m.symbol, "order_id", orderID, "attempt", attempt)
		status, err := m.broker.OrderStatus(ctx, orderID)
		if err != nil {
			slog.Warn("order status check failed", "symbol", m.symbol, "order_id", orderID, "attempt", attempt, "error", err)
			return retry.Retry, err
		}
		switch {
		case status.Status == broker.StatusFilled && status.FilledAvgPrice != nil:
			filled = *status.FilledAvgPrice
			return retry.Done, nil
		case broker.IsTerminalFailure(status.Status):
			return retry.Abort, &broker.BrokerageError{
				Op:     "order status",
				Symbol: m.symbol,
				Err:    fmt.Errorf("%w: %s is %s", ErrOrderRejected, orderID, status.Status),
			}
		default:
			slog.Info("order not filled yet", "symbol", m.symbol, "order_id", orderID, "status", status.Status, "attempt", attempt)
			return retry.Retry, nil
		}
	})
	m.metrics.PollAttempts(out.Attempts)

	if out.Done {
		return filled, nil
	}
	if errors.Is(out.Err, ErrOrderRejected) {
		return 0, out.Err
	}
	lastErr := out.Err
	if errors.Is(lastErr, retry.ErrExhausted) {
		lastErr = nil
	}
	return 0, &OrderUnconfirmedError{OrderID: orderID, Attempts: out.Attempts, Err: lastErr}
}

func (m *Manager) vet(side risk.Side, qty int, price float64, openOrders int) error {
	err := m.gate.Evaluate(risk.Intent{Symbol: m.symbol, Side: side, Qty: qty, Price: price}, risk.RiskContext{
		Now:            m.now(),
		OpenOrderCount: openOrders,
		LastTradeTime:  m.history.LastTradeTime(),
		MaxQty:         m.cfg.MaxQty,
		MaxNotional:    m.cfg.MaxNotional,
		Cooldown:       m.cfg.Cooldown,
		KillSwitch:     m.cfg.KillSwitch,
	})
	if err != nil {
		m.metrics.Order(string(side), "risk_rejected")
		return fmt.Errorf("%w: %v", ErrRiskRejected, err)
	}
	return nil
}

func (m *Manager) submit(ctx context.Context, req broker.OrderRequest) (Order, error) {
	req.TimeInForce = m.cfg.TimeInForce
	req.ClientOrderID = m.nextClientOrderID()

	ref, err := m.broker.SubmitOrder(ctx, req)
	if err != nil {
		m.metrics.Order(string(req.Side), "failed")
		return Order{}, err
	}
	order := Order{
		ID:            ref.ID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Type:          string(req.Type),
		Qty:           req.Qty,
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
		Status:        state.StatusSubmitted,
		SubmittedAt:   m.now().UTC(),
	}
	m.history.Append(order)
	return order, nil
}

func (m *Manager) confirm(ctx context.Context, order Order) Outcome {
	price, err := m.CheckOrderStatus(ctx, order.ID)

	var unconfirmed *OrderUnconfirmedError
	switch {
	case err == nil:
		order.Status = state.StatusFilled
		order.FilledAvgPrice = &price
	case errors.As(err, &unconfirmed):
		order.Status = state.StatusUnconfirmed
		slog.Warn("order could not be confirmed", "symbol", m.symbol, "order_id", order.ID, "attempts", unconfirmed.Attempts)
	default:
		order.Status = state.StatusRejected
		slog.Error("order rejected", "symbol", m.symbol, "order_id", order.ID, "error", err)
	}
	m.history.Resolve(order.ID, order.Status, order.FilledAvgPrice)
	m.metrics.Order(order.Side, string(order.Status))

	outcome := Outcome{Order: &order, Err: err}
	switch order.Status {
	case state.StatusFilled:
		outcome.State = Filled
	case state.StatusUnconfirmed:
		outcome.State = Unconfirmed
	default:
		outcome.State = Rejected
	}
	return outcome
}

func (m *Manager) failed(log *slog.Logger, msg string, err error) Outcome {
	log.Error(msg, "error", err)
	return Outcome{State: Failed, Err: err}
}

func (m *Manager) nextClientOrderID() string {
	if m.cfg.ClientOrderPrefix == "" {
		return uuid.NewString()
	}
	return m.cfg.ClientOrderPrefix + "-" + uuid.NewString()
}

func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
