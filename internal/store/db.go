// Package store implements the durable relational store backing the
// signal-lifecycle pipeline: signals, positions, execution log, daily
// statistics, blacklist, system state, and client heartbeats.
package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func NewDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// The relay runs as a single process; pin the pool to one writer so
	// sqlite's single-writer limitation never shows up as contention errors.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("durable store initialized")
	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		signal_id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		ticker TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price_type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL,
		take_profit REAL,
		atr REAL,
		rr_ratio REAL,
		rsi REAL,
		state TEXT NOT NULL,
		checksum TEXT NOT NULL,
		fetched_by TEXT,
		fetched_at INTEGER,
		executed_at INTEGER,
		execution_price REAL,
		order_id TEXT,
		error_message TEXT,
		source_ip TEXT,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_signals_state ON signals(state);
	CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at);
	CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker);

	CREATE TABLE IF NOT EXISTS positions (
		ticker TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL,
		avg_cost REAL NOT NULL,
		sector TEXT,
		entry_signal_id TEXT NOT NULL,
		entry_date INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS execution_log (
		execution_id TEXT PRIMARY KEY,
		signal_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		action TEXT NOT NULL,
		ticker TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		commission REAL NOT NULL DEFAULT 0,
		total_amount REAL NOT NULL,
		position_effect TEXT NOT NULL,
		realized_pnl REAL,
		executed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exec_ticker ON execution_log(ticker);
	CREATE INDEX IF NOT EXISTS idx_exec_executed_at ON execution_log(executed_at);

	CREATE TABLE IF NOT EXISTS daily_stats (
		stat_date TEXT PRIMARY KEY,
		entry_count INTEGER NOT NULL DEFAULT 0,
		exit_count INTEGER NOT NULL DEFAULT 0,
		total_trades INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		total_pnl REAL NOT NULL DEFAULT 0,
		total_commission REAL NOT NULL DEFAULT 0,
		consecutive_losses INTEGER NOT NULL DEFAULT 0,
		consecutive_wins INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS blacklist (
		ticker TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		ban_type TEXT NOT NULL,
		added_at INTEGER NOT NULL,
		expires_at INTEGER,
		added_by TEXT NOT NULL,
		metadata TEXT
	);

	CREATE TABLE IF NOT EXISTS system_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS heartbeats (
		client_id TEXT PRIMARY KEY,
		last_heartbeat INTEGER NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the durable store is reachable, for the /health endpoint.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// Now returns the current Unix timestamp (seconds).
func Now() int64 {
	return time.Now().Unix()
}

// DateKey returns the calendar-day key (local to t's location) DailyStats
// rows are partitioned by.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
