package domain

import "time"

type StrategyKind string

const (
	StrategyStreak   StrategyKind = "streak"
	StrategyRSI      StrategyKind = "rsi"
	StrategyMovement StrategyKind = "movement"
	StrategyGrid     StrategyKind = "grid"
	StrategyDCA      StrategyKind = "dca"
)

// Streak direction labels as shown in the bot builder.
const (
	StreakGreen     = "Green Candles"
	StreakRed       = "Red Candles"
	StreakLongOnly  = "Long Only"
	StreakShortOnly = "Short Only"
	StreakAuto      = "Auto"
)

// BotConfig describes a strategy instance built in the dashboard.
// It is immutable once created; the engine only reads it.
type BotConfig struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      StrategyKind `json:"kind"`
	Symbols   []string     `json:"symbols"`
	Timeframe string       `json:"timeframe"` // kline timeframe, e.g. "1m"

	// Streak strategy
	ConsecutiveCandles int    `json:"consecutive_candles,omitempty"`
	StreakDirection    string `json:"streak_direction,omitempty"`

	// RSI strategy
	RSIPeriod    int     `json:"rsi_period,omitempty"`
	RSIThreshold float64 `json:"rsi_threshold,omitempty"`

	// Price-movement strategy. MovementSymbol is the coin whose move is
	// watched; positions are opened on Symbols.
	MovementSymbol    string  `json:"movement_symbol,omitempty"`
	MovementThreshold float64 `json:"movement_threshold,omitempty"` // dollars
	MovementTimeframe string  `json:"movement_timeframe,omitempty"`
	MovementSide      Side    `json:"movement_side,omitempty"`

	// Grid strategy
	GridLower float64 `json:"grid_lower,omitempty"`
	GridUpper float64 `json:"grid_upper,omitempty"`
	GridCount int     `json:"grid_count,omitempty"`

	// DCA strategy
	DCAOrderCount  int     `json:"dca_order_count,omitempty"`
	DCAStepPct     float64 `json:"dca_step_pct,omitempty"`
	DCAOrderMargin float64 `json:"dca_order_margin,omitempty"`

	// Safety parameters
	CooldownSec     int  `json:"cooldown_sec"`
	OneTradeAtATime bool `json:"one_trade_at_a_time"`
	MaxTradesPerDay int  `json:"max_trades_per_day"`

	Margin   float64 `json:"margin"`
	Leverage int     `json:"leverage"`
	Side     Side    `json:"side"`

	CreatedAt time.Time `json:"created_at"`
}

// UsesTrigger reports whether positions for this strategy start PENDING and
// wait for an entry condition. Grid and DCA define a price ladder instead of
// a single entry event, so their positions are created active.
func (b *BotConfig) UsesTrigger() bool {
	switch b.Kind {
	case StrategyGrid, StrategyDCA:
		return false
	default:
		return true
	}
}
