// Package health runs the relay's background liveness sweep: periodically
// checking every client's last heartbeat against the configured staleness
// threshold and firing an alert the first time a client goes stale, per
// spec §4.9/§6.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/adminstream"
	"kabuto-relay/internal/notify"
	"kabuto-relay/internal/store"
)

// Status is one client's liveness as of the last sweep.
type Status struct {
	ClientID      string
	Healthy       bool
	LastHeartbeat time.Time
	Stale         bool
}

// Checker periodically sweeps store.Heartbeat rows for staleness. Grounded
// on the teacher's internal/health/checker.go: a mutex-guarded Status slice
// refreshed on a ticker, Start(ctx)/GetStatuses() as the public surface —
// generalized from RPC/Telegram endpoint probes to client heartbeat rows,
// since the relay has no outbound RPC/Telegram dependency to probe.
type Checker struct {
	db         *store.DB
	notify     *notify.Manager
	stream     *adminstream.Hub
	staleAfter time.Duration
	interval   time.Duration

	mu       sync.RWMutex
	statuses []Status
	alerted  map[string]bool
}

// NewChecker builds a Checker. notify and stream may be nil.
func NewChecker(db *store.DB, notify *notify.Manager, stream *adminstream.Hub, staleAfter, interval time.Duration) *Checker {
	return &Checker{
		db:         db,
		notify:     notify,
		stream:     stream,
		staleAfter: staleAfter,
		interval:   interval,
		alerted:    make(map[string]bool),
	}
}

// Start begins the periodic sweep; it returns once ctx is cancelled.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep(ctx)
			}
		}
	}()
}

func (c *Checker) sweep(ctx context.Context) {
	hbs, err := c.db.AllHeartbeats()
	if err != nil {
		log.Error().Err(err).Msg("health: failed to load heartbeats")
		return
	}

	now := time.Now()
	statuses := make([]Status, 0, len(hbs))
	for _, hb := range hbs {
		last := time.Unix(hb.LastHeartbeat, 0)
		stale := now.Sub(last) >= c.staleAfter
		statuses = append(statuses, Status{
			ClientID:      hb.ClientID,
			Healthy:       !stale,
			LastHeartbeat: last,
			Stale:         stale,
		})

		if stale && !c.alerted[hb.ClientID] {
			c.alerted[hb.ClientID] = true
			if c.notify != nil {
				c.notify.HeartbeatMissed(ctx, hb.ClientID, last)
			}
			if c.stream != nil {
				c.stream.Broadcast(adminstream.Event{
					Kind:      "heartbeat_missed",
					Timestamp: now,
					Payload:   map[string]string{"client_id": hb.ClientID},
				})
			}
			log.Warn().Str("client_id", hb.ClientID).Time("last_heartbeat", last).Msg("client heartbeat stale")
		} else if !stale {
			delete(c.alerted, hb.ClientID)
		}
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// GetStatuses returns every client's liveness as of the last sweep.
func (c *Checker) GetStatuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Status, len(c.statuses))
	copy(out, c.statuses)
	return out
}
