package usecase_test

import (
	"testing"
	"time"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
	"github.com/tradedash/crypto_bot_dash/internal/usecase"
)

func TestBuildPositionsTriggerStrategies(t *testing.T) {
	bot := &domain.BotConfig{
		ID:       "b1",
		Kind:     domain.StrategyStreak,
		Symbols:  []string{"BTCUSDT", "ETHUSDT"},
		Margin:   50,
		Leverage: 10,
		Side:     domain.SideLong,
	}
	positions := usecase.BuildPositions(bot, time.Now())
	if len(positions) != 2 {
		t.Fatalf("len = %d, want one per symbol", len(positions))
	}
	for _, p := range positions {
		if p.Status != domain.StatusPending {
			t.Errorf("%s: status = %s, want PENDING", p.Symbol, p.Status)
		}
		if p.EntryLocked {
			t.Errorf("%s: trigger positions must start unlocked", p.Symbol)
		}
		if p.ID == "" || p.BotID != "b1" {
			t.Errorf("%s: identity not filled in", p.Symbol)
		}
	}
	if positions[0].ID == positions[1].ID {
		t.Error("positions must get distinct ids")
	}
}

func TestBuildPositionsGridLocksMidRange(t *testing.T) {
	bot := &domain.BotConfig{
		ID:        "b1",
		Kind:      domain.StrategyGrid,
		Symbols:   []string{"BTCUSDT"},
		GridLower: 60_000,
		GridUpper: 70_000,
		Margin:    100,
	}
	positions := usecase.BuildPositions(bot, time.Now())
	if len(positions) != 1 {
		t.Fatalf("len = %d", len(positions))
	}
	p := positions[0]
	if p.Status != domain.StatusActive {
		t.Errorf("status = %s, want ACTIVE", p.Status)
	}
	if !p.EntryLocked || p.EntryPrice != 65_000 {
		t.Errorf("entry = %f locked = %v, want mid-range 65000 locked", p.EntryPrice, p.EntryLocked)
	}
}

func TestBuildPositionsGridLadder(t *testing.T) {
	bot := &domain.BotConfig{
		ID:        "b1",
		Kind:      domain.StrategyGrid,
		Symbols:   []string{"BTCUSDT"},
		GridLower: 60_000,
		GridUpper: 70_000,
		GridCount: 5,
		Margin:    100,
	}
	positions := usecase.BuildPositions(bot, time.Now())
	if len(positions) != 5 {
		t.Fatalf("len = %d, want one per grid level", len(positions))
	}
	want := []float64{60_000, 62_500, 65_000, 67_500, 70_000}
	for i, p := range positions {
		if p.Status != domain.StatusActive || !p.EntryLocked {
			t.Errorf("level %d: grid slots start active and locked", i)
		}
		if p.EntryPrice != want[i] {
			t.Errorf("level %d: entry = %f, want %f", i, p.EntryPrice, want[i])
		}
	}
}

func TestBuildPositionsGridInvalidRangeStaysUnlocked(t *testing.T) {
	bot := &domain.BotConfig{
		ID:        "b1",
		Kind:      domain.StrategyGrid,
		Symbols:   []string{"BTCUSDT"},
		GridLower: 70_000,
		GridUpper: 60_000,
	}
	p := usecase.BuildPositions(bot, time.Now())[0]
	if p.Status != domain.StatusActive || p.EntryLocked {
		t.Error("invalid range: active but unlocked, first tick locks the entry")
	}
}

func TestBuildPositionsDCA(t *testing.T) {
	bot := &domain.BotConfig{
		ID:             "b1",
		Kind:           domain.StrategyDCA,
		Symbols:        []string{"BTCUSDT"},
		DCAOrderCount:  3,
		DCAOrderMargin: 25,
		Margin:         100,
	}
	positions := usecase.BuildPositions(bot, time.Now())
	if len(positions) != 3 {
		t.Fatalf("len = %d, want one per order", len(positions))
	}
	for _, p := range positions {
		if p.Status != domain.StatusActive || p.EntryLocked {
			t.Error("DCA slots start active and unlocked")
		}
		if p.Margin != 25 {
			t.Errorf("margin = %f, want the per-order margin", p.Margin)
		}
	}
}

func TestBuildPositionsDCAStepOffsets(t *testing.T) {
	bot := &domain.BotConfig{
		ID:            "b1",
		Kind:          domain.StrategyDCA,
		Symbols:       []string{"BTCUSDT"},
		DCAOrderCount: 3,
		DCAStepPct:    1.5,
		Margin:        100,
	}
	positions := usecase.BuildPositions(bot, time.Now())
	want := []float64{0, 1.5, 3}
	for i, p := range positions {
		if p.EntryOffsetPct != want[i] {
			t.Errorf("slot %d: offset = %f, want %f", i, p.EntryOffsetPct, want[i])
		}
	}
}
