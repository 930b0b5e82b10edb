package trade

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrderSpec = errors.New("invalid order spec")
	ErrOrderRejected    = errors.New("order rejected")
	ErrRiskRejected     = errors.New("rejected by risk gate")
)

// OrderUnconfirmedError means an order never reported filled within the retry
// budget. The order is left working at the brokerage.
type OrderUnconfirmedError struct {
	OrderID  string
	Attempts int
	Err      error
}

func (e *OrderUnconfirmedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("order %s could not be confirmed after %d attempts", e.OrderID, e.Attempts)
	}
	return fmt.Sprintf("order %s could not be confirmed after %d attempts: %v", e.OrderID, e.Attempts, e.Err)
}

func (e *OrderUnconfirmedError) Unwrap() error {
	return e.Err
}
