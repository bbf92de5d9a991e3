package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

// BuildPositions creates the initial position set for a freshly added bot,
// one slot per configured symbol. Trigger strategies start pending; grid
// bots start active with their level prices locked as reference entries;
// DCA bots start active but unlocked so the first tick captures the real
// market price.
func BuildPositions(bot *domain.BotConfig, now time.Time) []*domain.Position {
	var out []*domain.Position
	for _, symbol := range bot.Symbols {
		switch bot.Kind {
		case domain.StrategyGrid:
			out = append(out, buildGridPositions(bot, symbol, now)...)
		case domain.StrategyDCA:
			out = append(out, buildDCAPositions(bot, symbol, now)...)
		default:
			out = append(out, &domain.Position{
				ID:        uuid.NewString(),
				BotID:     bot.ID,
				Symbol:    symbol,
				Status:    domain.StatusPending,
				Side:      defaultSide(bot),
				Margin:    bot.Margin,
				Leverage:  normalizeLeverage(bot.Leverage),
				CreatedAt: now,
			})
		}
	}
	return out
}

func buildGridPositions(bot *domain.BotConfig, symbol string, now time.Time) []*domain.Position {
	blank := func() *domain.Position {
		return &domain.Position{
			ID:        uuid.NewString(),
			BotID:     bot.ID,
			Symbol:    symbol,
			Status:    domain.StatusActive,
			Side:      defaultSide(bot),
			Margin:    bot.Margin,
			Leverage:  normalizeLeverage(bot.Leverage),
			CreatedAt: now,
		}
	}
	// An invalid range leaves a single unlocked slot; the first tick locks
	// the live market price instead.
	if bot.GridLower <= 0 || bot.GridUpper <= bot.GridLower {
		return []*domain.Position{blank()}
	}

	lock := func(pos *domain.Position, price float64, note string) {
		pos.EntryPrice = price
		pos.CurrentPrice = price
		pos.EntryLocked = true
		pos.EntryLockedAt = now
		pos.TriggerNote = note
	}

	if bot.GridCount <= 1 {
		pos := blank()
		lock(pos, (bot.GridLower+bot.GridUpper)/2, "grid range midpoint")
		return []*domain.Position{pos}
	}

	step := (bot.GridUpper - bot.GridLower) / float64(bot.GridCount-1)
	out := make([]*domain.Position, 0, bot.GridCount)
	for i := 0; i < bot.GridCount; i++ {
		pos := blank()
		lock(pos, bot.GridLower+step*float64(i), fmt.Sprintf("grid level %d/%d", i+1, bot.GridCount))
		out = append(out, pos)
	}
	return out
}

func buildDCAPositions(bot *domain.BotConfig, symbol string, now time.Time) []*domain.Position {
	count := bot.DCAOrderCount
	if count <= 0 {
		count = 1
	}
	margin := bot.DCAOrderMargin
	if margin <= 0 {
		margin = bot.Margin
	}
	out := make([]*domain.Position, 0, count)
	for i := 0; i < count; i++ {
		pos := &domain.Position{
			ID:        uuid.NewString(),
			BotID:     bot.ID,
			Symbol:    symbol,
			Status:    domain.StatusActive,
			Side:      defaultSide(bot),
			Margin:    margin,
			Leverage:  normalizeLeverage(bot.Leverage),
			CreatedAt: now,
		}
		// Each later slot averages in one step further from the first fill.
		if bot.DCAStepPct > 0 {
			pos.EntryOffsetPct = bot.DCAStepPct * float64(i)
		}
		out = append(out, pos)
	}
	return out
}

func normalizeLeverage(lev int) int {
	if lev <= 0 {
		return 1
	}
	return lev
}
