package health

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChecker_FlagsStaleHeartbeat(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertHeartbeat("executor-1", time.Now().Add(-time.Hour).Unix()))

	c := NewChecker(db, nil, nil, time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.sweep(ctx)

	statuses := c.GetStatuses()
	require.Len(t, statuses, 1)
	require.Equal(t, "executor-1", statuses[0].ClientID)
	require.True(t, statuses[0].Stale)
	require.False(t, statuses[0].Healthy)
}

func TestChecker_FreshHeartbeatIsHealthy(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.UpsertHeartbeat("executor-1", time.Now().Unix()))

	c := NewChecker(db, nil, nil, time.Minute, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.sweep(ctx)

	statuses := c.GetStatuses()
	require.Len(t, statuses, 1)
	require.True(t, statuses[0].Healthy)
	require.False(t, statuses[0].Stale)
}
