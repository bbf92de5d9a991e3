package usecase_test

import (
	"math"
	"testing"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
	"github.com/tradedash/crypto_bot_dash/internal/usecase"
)

func TestPnL(t *testing.T) {
	cases := []struct {
		name     string
		entry    float64
		current  float64
		side     domain.Side
		leverage int
		margin   float64
		wantPnL  float64
		wantPct  float64
	}{
		{"long 10pct up 10x", 100, 110, domain.SideLong, 10, 50, 50, 100},
		{"long 10pct down 10x", 100, 90, domain.SideLong, 10, 50, -50, -100},
		{"short 10pct up 10x", 100, 110, domain.SideShort, 10, 50, -50, -100},
		{"short 10pct down 10x", 100, 90, domain.SideShort, 10, 50, 50, 100},
		{"flat", 100, 100, domain.SideLong, 10, 50, 0, 0},
		{"no leverage defaults to 1x", 100, 110, domain.SideLong, 0, 100, 10, 10},
		{"zero entry guarded", 0, 110, domain.SideLong, 10, 50, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pnl, pct := usecase.PnL(tc.entry, tc.current, tc.side, tc.leverage, tc.margin)
			if math.Abs(pnl-tc.wantPnL) > 1e-9 {
				t.Errorf("pnl = %f, want %f", pnl, tc.wantPnL)
			}
			if math.Abs(pct-tc.wantPct) > 1e-9 {
				t.Errorf("pct = %f, want %f", pct, tc.wantPct)
			}
		})
	}
}

func TestRecalcPnL(t *testing.T) {
	pos := &domain.Position{
		ID:           "p1",
		Status:       domain.StatusActive,
		Side:         domain.SideLong,
		EntryPrice:   100,
		EntryLocked:  true,
		CurrentPrice: 100,
		Margin:       50,
		Leverage:     10,
	}

	next, changed := usecase.RecalcPnL(pos, 110)
	if !changed {
		t.Fatal("expected change")
	}
	if next == pos {
		t.Fatal("expected a new copy, got the same pointer")
	}
	if next.UnrealizedPnL != 50 || next.PnLPercent != 100 {
		t.Errorf("pnl = %f / %f%%, want 50 / 100%%", next.UnrealizedPnL, next.PnLPercent)
	}
	if pos.CurrentPrice != 100 {
		t.Errorf("input position mutated: currentPrice = %f", pos.CurrentPrice)
	}

	// Same price again: nothing to do.
	same, changed := usecase.RecalcPnL(next, 110)
	if changed || same != next {
		t.Error("expected no change for an identical price")
	}
}

func TestRecalcPnLUnlockedEntryKeepsStoredValues(t *testing.T) {
	pos := &domain.Position{
		ID:            "p1",
		Status:        domain.StatusActive,
		Side:          domain.SideLong,
		EntryLocked:   false,
		CurrentPrice:  100,
		UnrealizedPnL: 12.5,
		PnLPercent:    25,
		Margin:        50,
		Leverage:      10,
	}

	next, changed := usecase.RecalcPnL(pos, 110)
	if !changed {
		t.Fatal("current price should still refresh")
	}
	if next.UnrealizedPnL != 12.5 || next.PnLPercent != 25 {
		t.Errorf("stored pnl must survive while entry is unlocked, got %f / %f", next.UnrealizedPnL, next.PnLPercent)
	}
}

func TestRecalcPnLIgnoresNonActive(t *testing.T) {
	for _, status := range []domain.PositionStatus{domain.StatusPending, domain.StatusClosed} {
		pos := &domain.Position{ID: "p1", Status: status, CurrentPrice: 100}
		next, changed := usecase.RecalcPnL(pos, 110)
		if changed || next != pos {
			t.Errorf("status %s: expected no change", status)
		}
	}
}
