package state

import (
	"sync"
	"time"
)

type OrderStatus string

const (
	StatusSubmitted   OrderStatus = "submitted"
	StatusFilled      OrderStatus = "filled"
	StatusRejected    OrderStatus = "rejected"
	StatusUnconfirmed OrderStatus = "unconfirmed"
)

// Order is one order submitted during this process. The brokerage remains the
// system of record.
type Order struct {
	ID             string      `json:"id"`
	ClientOrderID  string      `json:"client_order_id"`
	Symbol         string      `json:"symbol"`
	Side           string      `json:"side"`
	Type           string      `json:"type"`
	Qty            int         `json:"qty"`
	LimitPrice     *float64    `json:"limit_price,omitempty"`
	StopPrice      *float64    `json:"stop_price,omitempty"`
	Status         OrderStatus `json:"status"`
	FilledAvgPrice *float64    `json:"filled_avg_price,omitempty"`
	SubmittedAt    time.Time   `json:"submitted_at"`
}

// TradeHistory is the append-only, in-memory record of submitted orders.
// Only the status and fill price of a recorded order change after Append.
type TradeHistory struct {
	mu     sync.RWMutex
	orders []Order
}

func NewTradeHistory() *TradeHistory {
	return &TradeHistory{}
}

func (h *TradeHistory) Append(order Order) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders = append(h.orders, order)
}

// Resolve records the final status of an order already in the history.
func (h *TradeHistory) Resolve(orderID string, status OrderStatus, filledAvgPrice *float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.orders) - 1; i >= 0; i-- {
		if h.orders[i].ID != orderID {
			continue
		}
		h.orders[i].Status = status
		if filledAvgPrice != nil {
			price := *filledAvgPrice
			h.orders[i].FilledAvgPrice = &price
		}
		return true
	}
	return false
}

func (h *TradeHistory) Orders() []Order {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Order, len(h.orders))
	copy(out, h.orders)
	return out
}

func (h *TradeHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orders)
}

// LastTradeTime is the submission time of the newest order, zero if none.
func (h *TradeHistory) LastTradeTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.orders) == 0 {
		return time.Time{}
	}
	return h.orders[len(h.orders)-1].SubmittedAt
}
