package engine

import (
	"context"
	"log/slog"

	"signalbot/internal/broker"
)

type AccountSource interface {
	Account(ctx context.Context) (broker.Account, error)
	Position(ctx context.Context, symbol string) (broker.Position, bool, error)
}

// LogAccount logs account balances and the positions held in tickers after a
// trading run. Failures are logged and otherwise ignored.
func LogAccount(ctx context.Context, src AccountSource, tickers []string) {
	for _, ticker := range tickers {
		pos, held, err := src.Position(ctx, ticker)
		switch {
		case err != nil:
			slog.Warn("position lookup failed", "ticker", ticker, "error", err)
		case held:
			slog.Info("position", "ticker", ticker, "qty", pos.Qty, "avg_entry", pos.AvgEntry)
		}
	}

	account, err := src.Account(ctx)
	if err != nil {
		slog.Warn("account lookup failed", "error", err)
		return
	}
	slog.Info("account", "equity", account.Equity, "buying_power", account.BuyingPower)
}
