package risk

import (
	"testing"
	"time"
)

func TestGateRejectsCooldown(t *testing.T) {
	gate := Gate{}
	intent := Intent{Symbol: "AAPL", Side: Buy, Qty: 1, Price: 100}
	ctx := RiskContext{
		Now:           time.Now(),
		LastTradeTime: time.Now().Add(-30 * time.Second),
		Cooldown:      time.Minute,
		MaxQty:        5,
		MaxNotional:   1000,
	}

	if err := gate.Evaluate(intent, ctx); err == nil {
		t.Fatalf("expected cooldown rejection")
	}
}

func TestGateRejectsMaxNotional(t *testing.T) {
	gate := Gate{}
	intent := Intent{Symbol: "AAPL", Side: Buy, Qty: 2, Price: 100}
	ctx := RiskContext{
		Now:         time.Now(),
		MaxQty:      5,
		MaxNotional: 150,
	}

	if err := gate.Evaluate(intent, ctx); err == nil {
		t.Fatalf("expected max notional rejection")
	}
}

func TestGateRejectsOpenOrderOnBuy(t *testing.T) {
	gate := Gate{}
	ctx := RiskContext{Now: time.Now(), OpenOrderCount: 1}

	if err := gate.Evaluate(Intent{Symbol: "AAPL", Side: Buy, Qty: 1, Price: 10}, ctx); err == nil {
		t.Fatalf("expected open order rejection")
	}
	if err := gate.Evaluate(Intent{Symbol: "AAPL", Side: Sell, Qty: 1, Price: 10}, ctx); err != nil {
		t.Fatalf("sell should ignore open orders, got %v", err)
	}
}

func TestGateRejectsKillSwitch(t *testing.T) {
	gate := Gate{}
	if err := gate.Evaluate(Intent{Side: Sell, Qty: 1}, RiskContext{KillSwitch: true}); err == nil {
		t.Fatalf("expected kill switch rejection")
	}
}

func TestGateApprovesValidBuy(t *testing.T) {
	gate := Gate{}
	intent := Intent{Symbol: "AAPL", Side: Buy, Qty: 1, Price: 100}
	ctx := RiskContext{
		Now:         time.Now(),
		MaxQty:      5,
		MaxNotional: 500,
	}

	if err := gate.Evaluate(intent, ctx); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}

func TestGateZeroLimitsAreUnlimited(t *testing.T) {
	gate := Gate{}
	intent := Intent{Symbol: "AAPL", Side: Buy, Qty: 1000, Price: 100}

	if err := gate.Evaluate(intent, RiskContext{Now: time.Now()}); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}
