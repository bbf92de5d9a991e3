package usecase

import "github.com/tradedash/crypto_bot_dash/internal/domain"

// Merge reconciles a base position list with a batch of updates. Positions
// appear in their original order; untouched entries keep their identity so
// downstream consumers can cheap-compare pointers. Updates whose ID is not
// in the base list are dropped, and an update carrying the same pointer as
// the base entry counts as untouched. When nothing changed the base slice
// itself is returned with changed=false.
func Merge(base []*domain.Position, updates []domain.PositionUpdate) (merged []*domain.Position, changed bool) {
	if len(updates) == 0 {
		return base, false
	}

	byID := make(map[string]*domain.Position, len(updates))
	for _, u := range updates {
		if u.Position != nil {
			byID[u.ID] = u.Position
		}
	}

	out := make([]*domain.Position, len(base))
	for i, pos := range base {
		if upd, ok := byID[pos.ID]; ok && upd != pos {
			out[i] = upd
			changed = true
		} else {
			out[i] = pos
		}
	}
	if !changed {
		return base, false
	}
	return out, true
}
