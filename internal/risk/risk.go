package risk

import (
	"fmt"
	"log/slog"
	"time"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type Intent struct {
	Symbol string
	Side   Side
	Qty    int
	Price  float64
}

type RiskContext struct {
	Now            time.Time
	OpenOrderCount int
	LastTradeTime  time.Time
	MaxQty         int
	MaxNotional    float64
	Cooldown       time.Duration
	KillSwitch     bool
}

// Gate vets an order before it reaches the brokerage. Zero limits are unlimited.
type Gate struct{}

func (g Gate) Evaluate(intent Intent, ctx RiskContext) error {
	notional := intent.Price * float64(intent.Qty)

	slog.Debug("risk evaluation", "symbol", intent.Symbol, "side", intent.Side, "qty", intent.Qty, "price", intent.Price, "notional", notional)

	if ctx.KillSwitch {
		slog.Info("risk rejected", "symbol", intent.Symbol, "reason", "kill_switch_enabled")
		return fmt.Errorf("kill_switch_enabled")
	}
	if intent.Qty <= 0 {
		slog.Info("risk rejected", "symbol", intent.Symbol, "reason", "invalid_quantity", "qty", intent.Qty)
		return fmt.Errorf("invalid_quantity")
	}
	if intent.Side == Buy && ctx.OpenOrderCount > 0 {
		slog.Info("risk rejected", "symbol", intent.Symbol, "reason", "open_order_exists", "count", ctx.OpenOrderCount)
		return fmt.Errorf("open_order_exists")
	}
	if !ctx.LastTradeTime.IsZero() && ctx.Now.Sub(ctx.LastTradeTime) < ctx.Cooldown {
		remaining := ctx.Cooldown - ctx.Now.Sub(ctx.LastTradeTime)
		slog.Info("risk rejected", "symbol", intent.Symbol, "reason", "cooldown_active", "remaining", remaining)
		return fmt.Errorf("cooldown_active")
	}
	if ctx.MaxQty > 0 && intent.Side == Buy && intent.Qty > ctx.MaxQty {
		slog.Info("risk rejected", "symbol", intent.Symbol, "reason", "max_qty_exceeded", "qty", intent.Qty, "max", ctx.MaxQty)
		return fmt.Errorf("max_qty_exceeded")
	}
	if ctx.MaxNotional > 0 && intent.Side == Buy && notional > ctx.MaxNotional {
		slog.Info("risk rejected", "symbol", intent.Symbol, "reason", "max_notional_exceeded", "notional", notional, "max", ctx.MaxNotional)
		return fmt.Errorf("max_notional_exceeded")
	}

	slog.Debug("risk approved", "symbol", intent.Symbol, "side", intent.Side, "qty", intent.Qty)
	return nil
}
