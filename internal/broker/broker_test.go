package broker

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	placed      []alpaca.PlaceOrderRequest
	order       *alpaca.Order
	orders      []alpaca.Order
	position    *alpaca.Position
	positionErr error
	err         error
}

func (f *fakeAPI) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	f.placed = append(f.placed, req)
	if f.err != nil {
		return nil, f.err
	}
	return &alpaca.Order{ID: "ord-1", ClientOrderID: req.ClientOrderID, Symbol: req.Symbol, Status: "new"}, nil
}

func (f *fakeAPI) GetOrder(orderID string) (*alpaca.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func (f *fakeAPI) GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error) {
	return f.orders, f.err
}

func (f *fakeAPI) GetPosition(symbol string) (*alpaca.Position, error) {
	if f.positionErr != nil {
		return nil, f.positionErr
	}
	return f.position, nil
}

func (f *fakeAPI) ClosePosition(symbol string, req alpaca.ClosePositionRequest) (*alpaca.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &alpaca.Order{ID: "close-1", Symbol: symbol, Status: "accepted"}, nil
}

func (f *fakeAPI) GetAccount() (*alpaca.Account, error) {
	return &alpaca.Account{Equity: decimal.NewFromInt(1000), BuyingPower: decimal.NewFromInt(500)}, f.err
}

func TestSubmitOrderConvertsPrices(t *testing.T) {
	api := &fakeAPI{}
	client := &Client{client: api}
	stop := 95.5

	ref, err := client.SubmitOrder(context.Background(), OrderRequest{
		Symbol:      "AAPL",
		Qty:         3,
		Side:        Sell,
		Type:        StopLimit,
		TimeInForce: GTC,
		StopPrice:   &stop,
		LimitPrice:  &stop,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", ref.ID)

	require.Len(t, api.placed, 1)
	placed := api.placed[0]
	assert.True(t, placed.Qty.Equal(decimal.NewFromInt(3)))
	assert.True(t, placed.StopPrice.Equal(decimal.NewFromFloat(95.5)))
	assert.True(t, placed.LimitPrice.Equal(decimal.NewFromFloat(95.5)))
}

func TestSubmitOrderWrapsFailures(t *testing.T) {
	client := &Client{client: &fakeAPI{err: errors.New("insufficient buying power")}}

	_, err := client.SubmitOrder(context.Background(), OrderRequest{Symbol: "AAPL", Qty: 1, Side: Buy, Type: Market, TimeInForce: GTC})
	var brokerErr *BrokerageError
	require.ErrorAs(t, err, &brokerErr)
	assert.Equal(t, "submit order", brokerErr.Op)
}

func TestPositionNotFoundMeansNoPosition(t *testing.T) {
	client := &Client{client: &fakeAPI{positionErr: &alpaca.APIError{StatusCode: http.StatusNotFound, Message: "position does not exist"}}}

	_, ok, err := client.Position(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPositionOtherErrorsPropagate(t *testing.T) {
	client := &Client{client: &fakeAPI{positionErr: &alpaca.APIError{StatusCode: http.StatusUnauthorized}}}

	_, _, err := client.Position(context.Background(), "AAPL")
	var brokerErr *BrokerageError
	assert.ErrorAs(t, err, &brokerErr)
}

func TestPositionHeld(t *testing.T) {
	client := &Client{client: &fakeAPI{position: &alpaca.Position{
		Symbol:        "AAPL",
		Qty:           decimal.NewFromInt(10),
		AvgEntryPrice: decimal.NewFromFloat(150.25),
	}}}

	pos, ok, err := client.Position(context.Background(), "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, pos.Qty)
	assert.InDelta(t, 150.25, pos.AvgEntry, 1e-9)
}

func TestOrderStatusFilledPrice(t *testing.T) {
	price := decimal.NewFromFloat(101.5)
	client := &Client{client: &fakeAPI{order: &alpaca.Order{
		ID:             "ord-1",
		Status:         "filled",
		FilledQty:      decimal.NewFromInt(2),
		FilledAvgPrice: &price,
	}}}

	status, err := client.OrderStatus(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, status.Status)
	require.NotNil(t, status.FilledAvgPrice)
	assert.InDelta(t, 101.5, *status.FilledAvgPrice, 1e-9)
}

func TestOpenOrdersFiltersBySymbol(t *testing.T) {
	client := &Client{client: &fakeAPI{orders: []alpaca.Order{
		{ID: "1", Symbol: "AAPL", Status: "new"},
		{ID: "2", Symbol: "MSFT", Status: "new"},
	}}}

	refs, err := client.OpenOrders(context.Background(), "MSFT")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "2", refs[0].ID)
}

func TestIsTerminalFailure(t *testing.T) {
	assert.True(t, IsTerminalFailure(StatusRejected))
	assert.True(t, IsTerminalFailure(StatusCanceled))
	assert.False(t, IsTerminalFailure("new"))
	assert.False(t, IsTerminalFailure(StatusFilled))
}
