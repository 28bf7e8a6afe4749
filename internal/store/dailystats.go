package store

// DailyStats is the per-calendar-day aggregate backing the daily-limit and
// auto-kill predicates (spec §3, §4.10).
type DailyStats struct {
	Date              string
	EntryCount        int
	ExitCount         int
	TotalTrades       int
	ErrorCount        int
	TotalPnL          float64
	TotalCommission   float64
	ConsecutiveLosses int
	ConsecutiveWins   int
}

// GetOrCreateDailyStats returns today's row, creating it lazily. The create
// race is resolved with INSERT OR IGNORE followed by a reselect, exactly as
// spec §9 mandates rather than a database-level lock.
func (d *DB) GetOrCreateDailyStats(date string) (*DailyStats, error) {
	if _, err := d.db.Exec(`INSERT OR IGNORE INTO daily_stats (stat_date) VALUES (?)`, date); err != nil {
		return nil, err
	}
	return d.getDailyStats(date)
}

func (d *DB) getDailyStats(date string) (*DailyStats, error) {
	var s DailyStats
	err := d.db.QueryRow(`SELECT stat_date, entry_count, exit_count, total_trades, error_count,
		total_pnl, total_commission, consecutive_losses, consecutive_wins
		FROM daily_stats WHERE stat_date = ?`, date).
		Scan(&s.Date, &s.EntryCount, &s.ExitCount, &s.TotalTrades, &s.ErrorCount,
			&s.TotalPnL, &s.TotalCommission, &s.ConsecutiveLosses, &s.ConsecutiveWins)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FillOutcome carries the caller-supplied realized result of a fill, used
// only to update consecutive win/loss streaks and total_pnl. It is optional
// (see DESIGN.md Open Question #1): when absent, only the trade/entry/exit
// counters move.
type FillOutcome struct {
	PnL    float64
	IsWin  bool
	Reject bool // an order-failure / error fill, bumps error_count only
}

// ApplyFill updates today's DailyStats for one fill, atomically relative to
// other callers via the same insert-or-ignore-then-reselect pattern: every
// column is set via a single UPDATE expression referencing the current row,
// so two concurrent fills serialize through sqlite's writer lock rather than
// clobbering each other's read-modify-write.
func (d *DB) ApplyFill(date, action string, outcome *FillOutcome) (*DailyStats, error) {
	if _, err := d.GetOrCreateDailyStats(date); err != nil {
		return nil, err
	}

	entryDelta, exitDelta := 0, 0
	if action == "buy" {
		entryDelta = 1
	} else {
		exitDelta = 1
	}

	if outcome == nil {
		_, err := d.db.Exec(`UPDATE daily_stats SET
			entry_count = entry_count + ?, exit_count = exit_count + ?, total_trades = total_trades + 1
			WHERE stat_date = ?`, entryDelta, exitDelta, date)
		if err != nil {
			return nil, err
		}
		return d.getDailyStats(date)
	}

	if outcome.Reject {
		_, err := d.db.Exec(`UPDATE daily_stats SET error_count = error_count + 1 WHERE stat_date = ?`, date)
		if err != nil {
			return nil, err
		}
		return d.getDailyStats(date)
	}

	if outcome.IsWin {
		_, err := d.db.Exec(`UPDATE daily_stats SET
			entry_count = entry_count + ?, exit_count = exit_count + ?, total_trades = total_trades + 1,
			total_pnl = total_pnl + ?, consecutive_wins = consecutive_wins + 1, consecutive_losses = 0
			WHERE stat_date = ?`, entryDelta, exitDelta, outcome.PnL, date)
		if err != nil {
			return nil, err
		}
		return d.getDailyStats(date)
	}

	_, err := d.db.Exec(`UPDATE daily_stats SET
		entry_count = entry_count + ?, exit_count = exit_count + ?, total_trades = total_trades + 1,
		total_pnl = total_pnl + ?, consecutive_losses = consecutive_losses + 1, consecutive_wins = 0
		WHERE stat_date = ?`, entryDelta, exitDelta, outcome.PnL, date)
	if err != nil {
		return nil, err
	}
	return d.getDailyStats(date)
}
