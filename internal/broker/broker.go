package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

type Side = alpaca.Side

type OrderType = alpaca.OrderType

type TimeInForce = alpaca.TimeInForce

const (
	Buy  = alpaca.Buy
	Sell = alpaca.Sell

	Market    = alpaca.Market
	Limit     = alpaca.Limit
	StopLimit = alpaca.StopLimit

	GTC = alpaca.GTC
	Day = alpaca.Day
)

const (
	StatusFilled   = "filled"
	StatusRejected = "rejected"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          Side
	Type          OrderType
	TimeInForce   TimeInForce
	ClientOrderID string
	LimitPrice    *float64
	StopPrice     *float64
}

type OrderRef struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Status        string
}

type OrderStatus struct {
	ID             string
	Status         string
	FilledQty      float64
	FilledAvgPrice *float64
}

type Position struct {
	Symbol   string
	Qty      int
	AvgEntry float64
}

type Account struct {
	Equity      float64
	BuyingPower float64
}

// BrokerageError wraps a failed call to the brokerage.
type BrokerageError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *BrokerageError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("brokerage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("brokerage %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *BrokerageError) Unwrap() error {
	return e.Err
}

type tradingAPI interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetOrder(orderID string) (*alpaca.Order, error)
	GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error)
	GetPosition(symbol string) (*alpaca.Position, error)
	ClosePosition(symbol string, req alpaca.ClosePositionRequest) (*alpaca.Order, error)
	GetAccount() (*alpaca.Account, error)
}

type Client struct {
	client tradingAPI
}

func New(apiKey, apiSecret, baseURL string) *Client {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Client{client: alpaca.NewClient(opts)}
}

func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	qty := decimal.NewFromInt(int64(req.Qty))
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
	}
	if req.LimitPrice != nil {
		limitPrice := decimal.NewFromFloat(*req.LimitPrice)
		orderReq.LimitPrice = &limitPrice
	}
	if req.StopPrice != nil {
		stopPrice := decimal.NewFromFloat(*req.StopPrice)
		orderReq.StopPrice = &stopPrice
	}

	order, err := c.client.PlaceOrder(orderReq)
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "type", req.Type, "error", err)
		return OrderRef{}, &BrokerageError{Op: "submit order", Symbol: req.Symbol, Err: err}
	}

	slog.Info("place order success", "order_id", order.ID, "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "type", req.Type, "status", order.Status)
	return toRef(order), nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	order, err := c.client.GetOrder(orderID)
	if err != nil {
		slog.Error("fetch order failed", "order_id", orderID, "error", err)
		return OrderStatus{}, &BrokerageError{Op: "get order", Err: err}
	}
	status := OrderStatus{
		ID:        order.ID,
		Status:    string(order.Status),
		FilledQty: order.FilledQty.InexactFloat64(),
	}
	if order.FilledAvgPrice != nil {
		price := order.FilledAvgPrice.InexactFloat64()
		status.FilledAvgPrice = &price
	}
	return status, nil
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]OrderRef, error) {
	orders, err := c.client.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		slog.Error("fetch open orders failed", "error", err)
		return nil, &BrokerageError{Op: "list open orders", Symbol: symbol, Err: err}
	}
	refs := make([]OrderRef, 0, len(orders))
	for i := range orders {
		if symbol != "" && orders[i].Symbol != symbol {
			continue
		}
		refs = append(refs, toRef(&orders[i]))
	}
	slog.Debug("open orders fetched", "symbol", symbol, "count", len(refs))
	return refs, nil
}

// Position returns the open position of symbol. ok is false when nothing is held.
func (c *Client) Position(ctx context.Context, symbol string) (Position, bool, error) {
	pos, err := c.client.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Position{}, false, nil
		}
		slog.Error("fetch position failed", "symbol", symbol, "error", err)
		return Position{}, false, &BrokerageError{Op: "get position", Symbol: symbol, Err: err}
	}
	qty := int(pos.Qty.IntPart())
	avgEntry := pos.AvgEntryPrice.InexactFloat64()
	if qty == 0 {
		return Position{}, false, nil
	}

	slog.Info("position fetched", "symbol", symbol, "qty", qty, "avg_entry", avgEntry)
	return Position{
		Symbol:   pos.Symbol,
		Qty:      qty,
		AvgEntry: avgEntry,
	}, true, nil
}

// ClosePosition liquidates the whole position at market.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (OrderRef, error) {
	order, err := c.client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		slog.Error("close position failed", "symbol", symbol, "error", err)
		return OrderRef{}, &BrokerageError{Op: "close position", Symbol: symbol, Err: err}
	}
	slog.Info("close position submitted", "symbol", symbol, "order_id", order.ID, "status", order.Status)
	return toRef(order), nil
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	acct, err := c.client.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return Account{}, &BrokerageError{Op: "get account", Err: err}
	}
	equity := acct.Equity.InexactFloat64()
	buyingPower := acct.BuyingPower.InexactFloat64()

	slog.Info("account fetched", "equity", equity, "buying_power", buyingPower)
	return Account{Equity: equity, BuyingPower: buyingPower}, nil
}

func toRef(order *alpaca.Order) OrderRef {
	return OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Status:        string(order.Status),
	}
}

// IsTerminalFailure reports statuses that will never reach filled.
func IsTerminalFailure(status string) bool {
	switch status {
	case StatusRejected, StatusCanceled, StatusExpired, "done_for_day":
		return true
	}
	return false
}
