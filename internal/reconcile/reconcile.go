// Package reconcile updates Position rows after a fill is reported, per
// spec §4.9. Grounded on
// _examples/original_source/relay_server/app/api/signals.py's
// _update_position.
package reconcile

import (
	"kabuto-relay/internal/store"
)

// Reconciler applies one fill's effect to the position book.
type Reconciler struct {
	db *store.DB
}

// New builds a Reconciler.
func New(db *store.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Apply folds a fill of quantity shares at price into ticker's position: a
// buy computes a new weighted-average cost, a sell reduces the position and
// deletes the row once it reaches zero or below.
func (r *Reconciler) Apply(signalID, ticker, action string, quantity int, price float64, entryDate int64) error {
	existing, err := r.db.GetPosition(ticker)
	if err != nil {
		return err
	}

	if action == "buy" {
		if existing != nil {
			totalCost := float64(existing.Quantity)*existing.AvgCost + float64(quantity)*price
			totalQuantity := existing.Quantity + quantity
			existing.AvgCost = totalCost / float64(totalQuantity)
			existing.Quantity = totalQuantity
			return r.db.UpsertPosition(existing)
		}
		return r.db.UpsertPosition(&store.Position{
			Ticker:        ticker,
			Quantity:      quantity,
			AvgCost:       price,
			EntrySignalID: signalID,
			EntryDate:     entryDate,
		})
	}

	// sell
	if existing == nil {
		return nil
	}
	if existing.Quantity <= quantity {
		return r.db.DeletePosition(ticker)
	}
	existing.Quantity -= quantity
	return r.db.UpsertPosition(existing)
}
