package usecase

import (
	"time"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

// NeedsEntryLock reports whether a position still needs its entry price
// captured: pending positions waiting on a trigger, and active positions
// that were created without a known price (grid/DCA before the first tick).
func NeedsEntryLock(pos *domain.Position) bool {
	if pos.EntryLocked {
		return false
	}
	return pos.Status == domain.StatusPending || pos.Status == domain.StatusActive
}

// Activate transitions a position to active and locks its entry at the
// given price, exactly once. If the entry is already locked, or no valid
// price is available yet, the input is returned unchanged so the caller
// can retry on a later tick. The returned copy starts with flat P&L.
func Activate(pos *domain.Position, price float64, now time.Time, res TriggerResult) *domain.Position {
	if pos.EntryLocked || price <= 0 {
		return pos
	}

	next := *pos
	next.Status = domain.StatusActive
	next.CurrentPrice = price
	next.EntryLocked = true
	next.EntryLockedAt = now
	if res.Side != "" {
		next.Side = res.Side
	}
	next.EntryPrice = offsetEntry(price, next.EntryOffsetPct, next.Side)
	next.UnrealizedPnL, next.PnLPercent = PnL(next.EntryPrice, next.CurrentPrice, next.Side, next.Leverage, next.Margin)
	if res.Note != "" {
		next.TriggerNote = res.Note
	}
	if res.StreakCount > 0 {
		next.StreakCount = res.StreakCount
	}
	if res.RSIReady {
		next.LastRSI = res.RSIValue
	}
	return &next
}

// offsetEntry places a laddered entry relative to the lock price. A LONG
// slot averages in below the market, a SHORT slot above it.
func offsetEntry(price, offsetPct float64, side domain.Side) float64 {
	if offsetPct <= 0 {
		return price
	}
	if side == domain.SideShort {
		return price * (1 + offsetPct/100)
	}
	return price * (1 - offsetPct/100)
}

// MarkActive flips a pending position to active without locking an entry
// price, used by manual activation when no market price is known yet. The
// lock then happens on the next tick through the usual path.
func MarkActive(pos *domain.Position) *domain.Position {
	if pos.Status != domain.StatusPending {
		return pos
	}
	next := *pos
	next.Status = domain.StatusActive
	return &next
}

// Close finalizes a position, freezing whatever P&L it carries.
func Close(pos *domain.Position, now time.Time) *domain.Position {
	if pos.Status == domain.StatusClosed {
		return pos
	}
	next := *pos
	next.Status = domain.StatusClosed
	next.ClosedAt = now
	return &next
}
