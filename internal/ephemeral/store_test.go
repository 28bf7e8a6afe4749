package ephemeral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGetExpiry(t *testing.T) {
	s := New(time.Hour)
	defer s.Stop()

	s.Set("k1", "v1", 50*time.Millisecond)
	v, ok := s.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", v)

	time.Sleep(80 * time.Millisecond)
	_, ok = s.Get("k1")
	require.False(t, ok)
}

func TestDeleteMatching(t *testing.T) {
	s := New(time.Hour)
	defer s.Stop()

	s.Set("cooldown:buy:7203", "", time.Minute)
	s.Set("cooldown:buy:9984", "", time.Minute)
	s.Set("cooldown:sell:7203", "", time.Minute)

	n := s.DeleteMatching(func(key string) bool {
		return len(key) >= 12 && key[:12] == "cooldown:buy"
	})
	require.Equal(t, 2, n)
	require.True(t, s.Exists("cooldown:sell:7203"))
}

func TestBackgroundSweep(t *testing.T) {
	s := New(20 * time.Millisecond)
	defer s.Stop()

	s.Set("k", "v", 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	s.mu.RLock()
	_, stillThere := s.entries["k"]
	s.mu.RUnlock()
	require.False(t, stillThere)
}
