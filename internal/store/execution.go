package store

// ExecutionLog is an immutable audit row written once per fill, per spec §3.
type ExecutionLog struct {
	ExecutionID    string
	SignalID       string
	OrderID        string
	Action         string
	Ticker         string
	Quantity       int
	Price          float64
	Commission     float64
	TotalAmount    float64
	PositionEffect string // open | close, derived solely from action per §9.2
	RealizedPnL    *float64
	ExecutedAt     int64
}

// InsertExecutionLog appends an execution record. Callers are expected to
// run this inside the same logical fill-reporting unit as the Signal state
// transition, Position mutation, and DailyStats update (spec §4.8/§5).
func (d *DB) InsertExecutionLog(e *ExecutionLog) error {
	_, err := d.db.Exec(`INSERT INTO execution_log
		(execution_id, signal_id, order_id, action, ticker, quantity, price, commission,
		 total_amount, position_effect, realized_pnl, executed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ExecutionID, e.SignalID, e.OrderID, e.Action, e.Ticker, e.Quantity, e.Price, e.Commission,
		e.TotalAmount, e.PositionEffect, e.RealizedPnL, e.ExecutedAt)
	return err
}

// TodayFillsForTicker returns every execution_log row for ticker whose
// executed_at falls within [dayStart, dayEnd), for the day-trading guard.
func (d *DB) TodayFillsForTicker(ticker string, dayStart, dayEnd int64) ([]*ExecutionLog, error) {
	rows, err := d.db.Query(`SELECT execution_id, signal_id, order_id, action, ticker, quantity, price,
		commission, total_amount, position_effect, realized_pnl, executed_at
		FROM execution_log WHERE ticker = ? AND executed_at >= ? AND executed_at < ?
		ORDER BY executed_at ASC`, ticker, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ExecutionLog
	for rows.Next() {
		var e ExecutionLog
		if err := rows.Scan(&e.ExecutionID, &e.SignalID, &e.OrderID, &e.Action, &e.Ticker, &e.Quantity,
			&e.Price, &e.Commission, &e.TotalAmount, &e.PositionEffect, &e.RealizedPnL, &e.ExecutedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
