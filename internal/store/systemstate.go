package store

import "database/sql"

// SystemState keys used by the kill-switch (spec §3).
const (
	StateKeyTradingEnabled    = "trading_enabled"
	StateKeyKillSwitchReason  = "kill_switch_reason"
	StateKeyKillSwitchActedAt = "kill_switch_activated_at"
	StateKeyKillSwitchActedBy = "kill_switch_activated_by"
)

// GetState reads a raw SystemState value. Returns ("", false) if absent.
func (d *DB) GetState(key string) (string, bool, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM system_state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetState writes (or overwrites) a SystemState value.
func (d *DB) SetState(key, value string) error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO system_state (key, value) VALUES (?, ?)`, key, value)
	return err
}
