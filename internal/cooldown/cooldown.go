// Package cooldown enforces the per-ticker and global minimum intervals
// between actions of spec §4.4, backed by the ephemeral TTL store. Grounded
// on _examples/original_source/relay_server/app/services/cooldown.py's key
// formats and wildcard reset semantics.
package cooldown

import (
	"fmt"
	"strings"
	"time"

	"kabuto-relay/internal/ephemeral"
)

// Result is the tagged-sum-type outcome of a cooldown check, per spec §9.
type Result struct {
	Allowed      bool
	Reason       string // cooldown_same_ticker | cooldown_any_ticker
	RetryAfterS  int
}

// Config holds the four configured durations of spec §4.4; zero disables
// that check.
type Config struct {
	BuySameTicker  time.Duration
	BuyAnyTicker   time.Duration
	SellSameTicker time.Duration
	SellAnyTicker  time.Duration
}

// Gate checks and sets cooldown keys against the ephemeral store.
type Gate struct {
	store *ephemeral.Store
	cfg   Config
}

// New creates a cooldown Gate.
func New(store *ephemeral.Store, cfg Config) *Gate {
	return &Gate{store: store, cfg: cfg}
}

func tickerKey(action, ticker string) string {
	return fmt.Sprintf("cooldown:%s:%s", action, ticker)
}

func globalKey(action string) string {
	return fmt.Sprintf("cooldown:%s:global", action)
}

// Check evaluates whether action on ticker is currently cooling down. It
// checks the same-ticker key first, then the global key, matching the
// source's check order.
func (g *Gate) Check(action, ticker string) Result {
	if ttl := g.store.TTL(tickerKey(action, ticker)); ttl > 0 {
		return Result{Allowed: false, Reason: "cooldown_same_ticker", RetryAfterS: int(ttl.Seconds()) + 1}
	}
	if ttl := g.store.TTL(globalKey(action)); ttl > 0 {
		return Result{Allowed: false, Reason: "cooldown_any_ticker", RetryAfterS: int(ttl.Seconds()) + 1}
	}
	return Result{Allowed: true}
}

// Set activates both the same-ticker and global cooldown keys for action,
// called once a signal has been fully persisted (spec §4.4).
func (g *Gate) Set(action, ticker string) {
	same, global := g.durations(action)
	if same > 0 {
		g.store.Set(tickerKey(action, ticker), "1", same)
	}
	if global > 0 {
		g.store.Set(globalKey(action), "1", global)
	}
}

func (g *Gate) durations(action string) (same, global time.Duration) {
	if action == "buy" {
		return g.cfg.BuySameTicker, g.cfg.BuyAnyTicker
	}
	return g.cfg.SellSameTicker, g.cfg.SellAnyTicker
}

// Reset removes the cooldown key(s) matching action/ticker. A "*" for either
// field is a wildcard, matching the admin surface's reset semantics (spec §6,
// §8's "wildcard reset removes exactly the matching set" law). Returns the
// number of keys removed.
func (g *Gate) Reset(action, ticker string) int {
	prefix := "cooldown:"
	return g.store.DeleteMatching(func(key string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		parts := strings.SplitN(strings.TrimPrefix(key, prefix), ":", 2)
		if len(parts) != 2 {
			return false
		}
		keyAction, keyTicker := parts[0], parts[1]
		if action != "*" && action != keyAction {
			return false
		}
		if ticker != "*" && ticker != keyTicker {
			return false
		}
		return true
	})
}

// ActiveEntry describes one active cooldown key for the admin listing
// endpoint.
type ActiveEntry struct {
	Action      string
	Ticker      string
	RemainingS  int
}

// Active lists every currently-set cooldown key.
func (g *Gate) Active() []ActiveEntry {
	keys := g.store.Keys(func(key string) bool { return strings.HasPrefix(key, "cooldown:") })
	out := make([]ActiveEntry, 0, len(keys))
	for k, ttl := range keys {
		parts := strings.SplitN(strings.TrimPrefix(k, "cooldown:"), ":", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, ActiveEntry{Action: parts[0], Ticker: parts[1], RemainingS: int(ttl.Seconds())})
	}
	return out
}
