package store

import (
	"database/sql"
	"errors"
)

// Position is one row per currently held ticker, per spec §3.
type Position struct {
	Ticker        string
	Quantity      int
	AvgCost       float64
	Sector        *string
	EntrySignalID string
	EntryDate     int64
}

// GetPosition looks up a position by ticker. Returns (nil, nil) if none
// exists (mirroring the teacher's GetPosition no-rows convention).
func (d *DB) GetPosition(ticker string) (*Position, error) {
	var p Position
	err := d.db.QueryRow(`SELECT ticker, quantity, avg_cost, sector, entry_signal_id, entry_date
		FROM positions WHERE ticker = ?`, ticker).
		Scan(&p.Ticker, &p.Quantity, &p.AvgCost, &p.Sector, &p.EntrySignalID, &p.EntryDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAllPositions returns every open position.
func (d *DB) GetAllPositions() ([]*Position, error) {
	rows, err := d.db.Query(`SELECT ticker, quantity, avg_cost, sector, entry_signal_id, entry_date FROM positions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Ticker, &p.Quantity, &p.AvgCost, &p.Sector, &p.EntrySignalID, &p.EntryDate); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// UpsertPosition inserts or replaces a position row wholesale — used by the
// reconciler after it has computed the new quantity/avg_cost in Go.
func (d *DB) UpsertPosition(p *Position) error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO positions
		(ticker, quantity, avg_cost, sector, entry_signal_id, entry_date)
		VALUES (?,?,?,?,?,?)`,
		p.Ticker, p.Quantity, p.AvgCost, p.Sector, p.EntrySignalID, p.EntryDate)
	return err
}

// DeletePosition removes a position row (quantity reached zero on a sell).
func (d *DB) DeletePosition(ticker string) error {
	_, err := d.db.Exec(`DELETE FROM positions WHERE ticker = ?`, ticker)
	return err
}

// TotalExposure returns the sum of quantity*avg_cost across every open
// position, used by the risk controller's total-exposure projection.
func (d *DB) TotalExposure() (float64, error) {
	var total float64
	err := d.db.QueryRow(`SELECT COALESCE(SUM(quantity * avg_cost), 0) FROM positions`).Scan(&total)
	return total, err
}

// SectorExposure returns the sum of quantity*avg_cost for positions sharing
// sector, per the supplemented sector-exposure risk check (SPEC_FULL.md §12).
func (d *DB) SectorExposure(sector string) (float64, error) {
	var total float64
	err := d.db.QueryRow(`SELECT COALESCE(SUM(quantity * avg_cost), 0) FROM positions WHERE sector = ?`, sector).
		Scan(&total)
	return total, err
}

// OpenPositionCount returns the number of distinct held tickers.
func (d *DB) OpenPositionCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM positions`).Scan(&n)
	return n, err
}
