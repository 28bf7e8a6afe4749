package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSignalLifecycle(t *testing.T) {
	db := newTestDB(t)
	now := Now()

	sig := &Signal{
		SignalID:   "sig_20260101_100000_7203_buy",
		Action:     "buy",
		Ticker:     "7203",
		Quantity:   100,
		PriceType:  "market",
		EntryPrice: 1850,
		State:      StatePending,
		Checksum:   "abcdef0123456789",
		CreatedAt:  now,
		ExpiresAt:  now + 900,
	}
	require.NoError(t, db.InsertSignal(sig))
	require.ErrorIs(t, db.InsertSignal(sig), ErrAlreadyExists)

	got, err := db.GetSignal(sig.SignalID)
	require.NoError(t, err)
	require.Equal(t, StatePending, got.State)

	pending, err := db.PendingSignals(now)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	acked, err := db.AckSignal(sig.SignalID, "client-1", now+1)
	require.NoError(t, err)
	require.Equal(t, StateFetched, acked.State)

	// Idempotent ack: same fetched_at.
	acked2, err := db.AckSignal(sig.SignalID, "client-1", now+99)
	require.NoError(t, err)
	require.Equal(t, *acked.FetchedAt, *acked2.FetchedAt)

	require.NoError(t, db.MarkExecuted(sig.SignalID, 1851, "O1", now+2))
	require.ErrorIs(t, db.MarkExecuted(sig.SignalID, 1851, "O1", now+2), ErrAlreadyExists)
}

func TestExpireStalePending(t *testing.T) {
	db := newTestDB(t)
	now := Now()
	sig := &Signal{
		SignalID: "sig_expired", Action: "buy", Ticker: "7203", Quantity: 100,
		PriceType: "market", EntryPrice: 100, State: StatePending, Checksum: "x",
		CreatedAt: now - 1000, ExpiresAt: now - 1,
	}
	require.NoError(t, db.InsertSignal(sig))

	n, err := db.ExpireStalePending(now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := db.GetSignal(sig.SignalID)
	require.NoError(t, err)
	require.Equal(t, StateExpired, got.State)

	pending, err := db.PendingSignals(now)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPositionRoundTrip(t *testing.T) {
	db := newTestDB(t)

	p, err := db.GetPosition("7203")
	require.NoError(t, err)
	require.Nil(t, p)

	require.NoError(t, db.UpsertPosition(&Position{
		Ticker: "7203", Quantity: 100, AvgCost: 1851, EntrySignalID: "sig1", EntryDate: Now(),
	}))
	got, err := db.GetPosition("7203")
	require.NoError(t, err)
	require.Equal(t, 100, got.Quantity)

	require.NoError(t, db.DeletePosition("7203"))
	got, err = db.GetPosition("7203")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDailyStatsInsertOrIgnoreThenReselect(t *testing.T) {
	db := newTestDB(t)
	date := "2026-01-01"

	s1, err := db.GetOrCreateDailyStats(date)
	require.NoError(t, err)
	require.Equal(t, date, s1.Date)

	// Second call must not error or reset the row.
	s2, err := db.GetOrCreateDailyStats(date)
	require.NoError(t, err)
	require.Equal(t, s1.EntryCount, s2.EntryCount)

	after, err := db.ApplyFill(date, "sell", &FillOutcome{PnL: -500, IsWin: false})
	require.NoError(t, err)
	require.Equal(t, 1, after.ConsecutiveLosses)
	require.Equal(t, 1, after.ExitCount)
}

func TestBlacklistSweep(t *testing.T) {
	db := newTestDB(t)
	now := Now()
	expired := now - 1
	require.NoError(t, db.UpsertBlacklistEntry(&BlacklistEntry{
		Ticker: "9999", Reason: "test", Type: BanTemporary, AddedAt: now - 100, ExpiresAt: &expired, AddedBy: "tester",
	}))

	require.NoError(t, db.SweepExpiredBlacklist(now))
	e, err := db.GetBlacklistEntry("9999")
	require.NoError(t, err)
	require.Nil(t, e)
}
