package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type PositionStatus string

const (
	StatusPending PositionStatus = "PENDING"
	StatusActive  PositionStatus = "ACTIVE"
	StatusClosed  PositionStatus = "CLOSED"
)

// Position is the mutable unit the engine operates on. Status only moves
// forward (PENDING -> ACTIVE -> CLOSED); the entry price is written at most
// once, by the PENDING -> ACTIVE transition that sets EntryLocked.
type Position struct {
	ID     string         `json:"id"`
	BotID  string         `json:"bot_id"`
	Symbol string         `json:"symbol"`
	Status PositionStatus `json:"status"`
	Side   Side           `json:"side"`

	EntryPrice    float64   `json:"entry_price"`
	EntryLocked   bool      `json:"entry_locked"`
	EntryLockedAt time.Time `json:"entry_locked_at,omitempty"`
	CurrentPrice  float64   `json:"current_price"`

	// EntryOffsetPct shifts the entry away from the lock price when the
	// entry locks: below it for LONG slots, above it for SHORT. DCA ladders
	// use it to space their averaging slots.
	EntryOffsetPct float64 `json:"entry_offset_pct,omitempty"`

	Margin   float64 `json:"margin"`
	Leverage int     `json:"leverage"`

	// UnrealizedPnL and PnLPercent are recomputed from (CurrentPrice,
	// EntryPrice, Side, Leverage, Margin) on every tick while ACTIVE.
	// While EntryLocked is false, EntryPrice must not be trusted and the
	// stored values are carried as a display fallback.
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PnLPercent    float64 `json:"pnl_percent"`

	// Strategy progress, refreshed on each evaluation of a pending position.
	StreakCount int     `json:"streak_count,omitempty"`
	LastRSI     float64 `json:"last_rsi,omitempty"`

	// Trigger audit: what the predicate saw at the moment of activation.
	TriggerNote string `json:"trigger_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ClosedAt  time.Time `json:"closed_at,omitempty"`
}

// PositionUpdate is a partial update produced by one tick cycle, merged into
// the authoritative list by the reconciler.
type PositionUpdate struct {
	ID       string
	Position *Position
}
