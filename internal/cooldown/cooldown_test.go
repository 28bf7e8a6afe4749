package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/ephemeral"
)

func newGate(t *testing.T) (*Gate, *ephemeral.Store) {
	t.Helper()
	store := ephemeral.New(time.Hour)
	t.Cleanup(store.Stop)
	cfg := Config{
		BuySameTicker:  30 * time.Minute,
		BuyAnyTicker:   0,
		SellSameTicker: 30 * time.Minute,
		SellAnyTicker:  0,
	}
	return New(store, cfg), store
}

func TestCheckAllowsWhenNoCooldownSet(t *testing.T) {
	g, _ := newGate(t)
	r := g.Check("buy", "7203")
	require.True(t, r.Allowed)
}

func TestSetThenCheckBlocksSameTicker(t *testing.T) {
	g, _ := newGate(t)
	g.Set("buy", "7203")

	r := g.Check("buy", "7203")
	require.False(t, r.Allowed)
	require.Equal(t, "cooldown_same_ticker", r.Reason)
	require.Greater(t, r.RetryAfterS, 0)

	// A different ticker with buy_any_ticker_seconds=0 is unaffected.
	r2 := g.Check("buy", "9984")
	require.True(t, r2.Allowed)
}

func TestGlobalCooldownBlocksAnyTicker(t *testing.T) {
	g, _ := newGate(t)
	g.cfg.BuyAnyTicker = time.Hour
	g.Set("buy", "7203")

	r := g.Check("buy", "9984")
	require.False(t, r.Allowed)
	require.Equal(t, "cooldown_any_ticker", r.Reason)
}

func TestResetWildcard(t *testing.T) {
	g, _ := newGate(t)
	g.Set("buy", "7203")
	g.Set("sell", "7203")

	removed := g.Reset("buy", "*")
	require.Equal(t, 1, removed)

	require.True(t, g.Check("buy", "7203").Allowed)
	require.False(t, g.Check("sell", "7203").Allowed)
}

func TestResetExactPair(t *testing.T) {
	g, _ := newGate(t)
	g.Set("buy", "7203")
	g.Set("buy", "9984")

	removed := g.Reset("buy", "7203")
	require.Equal(t, 1, removed)
	require.True(t, g.Check("buy", "7203").Allowed)
	require.False(t, g.Check("buy", "9984").Allowed)
}

func TestActiveListsCooldowns(t *testing.T) {
	g, _ := newGate(t)
	g.Set("buy", "7203")

	entries := g.Active()
	require.Len(t, entries, 1)
	require.Equal(t, "buy", entries[0].Action)
	require.Equal(t, "7203", entries[0].Ticker)
}
