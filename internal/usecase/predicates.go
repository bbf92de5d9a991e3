package usecase

import (
	"fmt"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

// TriggerResult is the outcome of evaluating one bot's entry condition
// against a market snapshot. Side is the resolved trade direction, which
// for Auto streak bots and movement bots depends on what the market did.
type TriggerResult struct {
	Fire        bool
	Side        domain.Side
	StreakCount int
	RSIValue    float64
	RSIReady    bool
	Note        string
}

type predicateFunc func(bot *domain.BotConfig, symbol string, w *MarketWatch) TriggerResult

// predicates dispatches on strategy kind. Grid and DCA bots have no entry
// trigger; their positions are created active.
var predicates = map[domain.StrategyKind]predicateFunc{
	domain.StrategyStreak:   evalStreak,
	domain.StrategyRSI:      evalRSI,
	domain.StrategyMovement: evalMovement,
}

// EvaluateTrigger runs the bot's entry predicate for one of its symbols.
// Unknown or trigger-less strategies never fire.
func EvaluateTrigger(bot *domain.BotConfig, symbol string, w *MarketWatch) TriggerResult {
	fn, ok := predicates[bot.Kind]
	if !ok {
		return TriggerResult{Side: defaultSide(bot)}
	}
	return fn(bot, symbol, w)
}

func defaultSide(bot *domain.BotConfig) domain.Side {
	if bot.Side == domain.SideShort {
		return domain.SideShort
	}
	return domain.SideLong
}

func evalStreak(bot *domain.BotConfig, symbol string, w *MarketWatch) TriggerResult {
	snap := w.Snapshot(symbol)
	streak := snap.StreakFor(bot.Timeframe)

	var count int
	var side domain.Side
	switch bot.StreakDirection {
	case domain.StreakGreen, domain.StreakLongOnly:
		count, side = streak.Green, domain.SideLong
	case domain.StreakRed, domain.StreakShortOnly:
		count, side = streak.Red, domain.SideShort
	case domain.StreakAuto:
		// The longer run wins; a tie reads as green.
		if streak.Red > streak.Green {
			count, side = streak.Red, domain.SideShort
		} else {
			count, side = streak.Green, domain.SideLong
		}
	default:
		count, side = streak.Green, domain.SideLong
	}

	res := TriggerResult{
		Side:        side,
		StreakCount: count,
	}
	if bot.ConsecutiveCandles > 0 && count >= bot.ConsecutiveCandles {
		res.Fire = true
		color := "green"
		if side == domain.SideShort {
			color = "red"
		}
		res.Note = fmt.Sprintf("%d consecutive %s candles on %s", count, color, bot.Timeframe)
	}
	return res
}

func evalRSI(bot *domain.BotConfig, symbol string, w *MarketWatch) TriggerResult {
	snap := w.Snapshot(symbol)
	value, ready := snap.RSIFor(bot.Timeframe, bot.RSIPeriod)

	res := TriggerResult{
		Side:     defaultSide(bot),
		RSIValue: value,
		RSIReady: ready,
	}
	if !ready {
		return res
	}
	// Oversold touch: fire when RSI is at or below the threshold.
	if value <= bot.RSIThreshold {
		res.Fire = true
		res.Note = fmt.Sprintf("RSI(%d) %.2f <= %.2f on %s", bot.RSIPeriod, value, bot.RSIThreshold, bot.Timeframe)
	}
	return res
}

func evalMovement(bot *domain.BotConfig, symbol string, w *MarketWatch) TriggerResult {
	watched := bot.MovementSymbol
	if watched == "" {
		watched = symbol
	}
	snap := w.Snapshot(watched)

	res := TriggerResult{Side: defaultSide(bot)}
	open, ok := snap.FrameOpen(bot.MovementTimeframe)
	if !ok || !snap.HasPrice {
		return res
	}
	delta := snap.Price - open

	switch bot.MovementSide {
	case domain.SideShort:
		res.Side = domain.SideShort
		if bot.MovementThreshold > 0 && -delta >= bot.MovementThreshold {
			res.Fire = true
		}
	default:
		res.Side = domain.SideLong
		if bot.MovementThreshold > 0 && delta >= bot.MovementThreshold {
			res.Fire = true
		}
	}
	if res.Fire {
		res.Note = fmt.Sprintf("%s moved %+.2f within %s frame", watched, delta, bot.MovementTimeframe)
	}
	return res
}
