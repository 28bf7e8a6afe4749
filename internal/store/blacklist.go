package store

import (
	"database/sql"
	"errors"
)

// Ban types for Blacklist entries, per spec §3/§4.11.
const (
	BanPermanent = "permanent"
	BanTemporary = "temporary"
	BanDynamic   = "dynamic"
)

// BlacklistEntry bans a ticker from trading, either forever, for a fixed
// term, or dynamically in response to losses.
type BlacklistEntry struct {
	Ticker    string
	Reason    string
	Type      string
	AddedAt   int64
	ExpiresAt *int64
	AddedBy   string
	Metadata  string
}

// UpsertBlacklistEntry adds or replaces a ban.
func (d *DB) UpsertBlacklistEntry(e *BlacklistEntry) error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO blacklist
		(ticker, reason, ban_type, added_at, expires_at, added_by, metadata)
		VALUES (?,?,?,?,?,?,?)`,
		e.Ticker, e.Reason, e.Type, e.AddedAt, e.ExpiresAt, e.AddedBy, e.Metadata)
	return err
}

// RemoveBlacklistEntry lifts a ban.
func (d *DB) RemoveBlacklistEntry(ticker string) error {
	_, err := d.db.Exec(`DELETE FROM blacklist WHERE ticker = ?`, ticker)
	return err
}

// GetBlacklistEntry looks up a single entry, or (nil, nil) if absent.
func (d *DB) GetBlacklistEntry(ticker string) (*BlacklistEntry, error) {
	var e BlacklistEntry
	err := d.db.QueryRow(`SELECT ticker, reason, ban_type, added_at, expires_at, added_by, metadata
		FROM blacklist WHERE ticker = ?`, ticker).
		Scan(&e.Ticker, &e.Reason, &e.Type, &e.AddedAt, &e.ExpiresAt, &e.AddedBy, &e.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SweepExpiredBlacklist removes every entry whose expires_at has passed, the
// lazy-sweep mandated by spec §4.11.
func (d *DB) SweepExpiredBlacklist(now int64) error {
	_, err := d.db.Exec(`DELETE FROM blacklist WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	return err
}

// AllBlacklistEntries lists every active ban (callers should Sweep first).
func (d *DB) AllBlacklistEntries() ([]*BlacklistEntry, error) {
	rows, err := d.db.Query(`SELECT ticker, reason, ban_type, added_at, expires_at, added_by, metadata FROM blacklist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BlacklistEntry
	for rows.Next() {
		var e BlacklistEntry
		if err := rows.Scan(&e.Ticker, &e.Reason, &e.Type, &e.AddedAt, &e.ExpiresAt, &e.AddedBy, &e.Metadata); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
