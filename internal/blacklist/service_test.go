package blacklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.NewDB(t.TempDir() + "/blacklist.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, 3, 30*24*time.Hour)
}

func TestNotBlacklistedByDefault(t *testing.T) {
	s := newTestService(t)
	banned, err := s.IsBlacklisted("7203")
	require.NoError(t, err)
	require.False(t, banned)
}

func TestAddAndCheckPermanent(t *testing.T) {
	s := newTestService(t)
	_, err := s.Add("7203", "manual review", store.BanPermanent, 0, "manual")
	require.NoError(t, err)

	banned, err := s.IsBlacklisted("7203")
	require.NoError(t, err)
	require.True(t, banned)
}

func TestAddIdempotent(t *testing.T) {
	s := newTestService(t)
	first, err := s.Add("7203", "first reason", store.BanTemporary, 1, "manual")
	require.NoError(t, err)

	second, err := s.Add("7203", "second reason", store.BanTemporary, 1, "manual")
	require.NoError(t, err)
	require.Equal(t, first.Reason, second.Reason)
}

func TestRemove(t *testing.T) {
	s := newTestService(t)
	_, err := s.Add("7203", "x", store.BanPermanent, 0, "manual")
	require.NoError(t, err)

	removed, err := s.Remove("7203")
	require.NoError(t, err)
	require.True(t, removed)

	banned, err := s.IsBlacklisted("7203")
	require.NoError(t, err)
	require.False(t, banned)
}

func TestRemoveMissingReturnsFalse(t *testing.T) {
	s := newTestService(t)
	removed, err := s.Remove("9999")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestShouldAutoBanAndAddAutoForLosses(t *testing.T) {
	s := newTestService(t)
	require.False(t, s.ShouldAutoBan(2))
	require.True(t, s.ShouldAutoBan(3))

	entry, err := s.AddAutoForLosses("7203", 3)
	require.NoError(t, err)
	require.Equal(t, store.BanDynamic, entry.Type)
	require.NotNil(t, entry.ExpiresAt)
}
