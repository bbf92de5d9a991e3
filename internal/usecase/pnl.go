package usecase

import "github.com/tradedash/crypto_bot_dash/internal/domain"

// PnL computes unrealized profit for a locked entry. The percentage is the
// leveraged move relative to entry; the dollar value applies it to margin.
// Shorts profit from price falling.
func PnL(entry, current float64, side domain.Side, leverage int, margin float64) (pnl, pct float64) {
	if entry <= 0 {
		return 0, 0
	}
	if leverage <= 0 {
		leverage = 1
	}
	dir := 1.0
	if side == domain.SideShort {
		dir = -1.0
	}
	pct = (current - entry) / entry * dir * float64(leverage) * 100
	pnl = pct / 100 * margin
	return pnl, pct
}

// RecalcPnL folds a new market price into an active position. It returns
// the updated copy and whether anything changed. Positions without a locked
// positive entry price keep their stored P&L untouched; recomputing against
// a zero entry would report a nonsense hundred-percent move.
func RecalcPnL(pos *domain.Position, price float64) (*domain.Position, bool) {
	if pos.Status != domain.StatusActive || price <= 0 {
		return pos, false
	}

	next := *pos
	next.CurrentPrice = price
	if pos.EntryLocked && pos.EntryPrice > 0 {
		next.UnrealizedPnL, next.PnLPercent = PnL(pos.EntryPrice, price, pos.Side, pos.Leverage, pos.Margin)
	}
	if next == *pos {
		return pos, false
	}
	return &next, true
}
