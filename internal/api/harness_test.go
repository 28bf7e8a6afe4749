package api

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/blacklist"
	"kabuto-relay/internal/cooldown"
	"kabuto-relay/internal/ephemeral"
	"kabuto-relay/internal/markethours"
	"kabuto-relay/internal/reconcile"
	"kabuto-relay/internal/risk"
	"kabuto-relay/internal/store"
	"kabuto-relay/internal/validate"
)

// newTestServer builds a Server over a fresh on-disk sqlite database and the
// full set of domain collaborators, permissive enough that a well-formed
// request succeeds end to end. Individual tests tighten what they need to
// exercise a specific gate.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eph := ephemeral.New(time.Minute)

	// Safe-window bounds are widened to 00:00-23:59 so dispatch-API tests
	// (which run the pre-dispatch validator's IsSafeWindow check) don't
	// depend on the time of day. IsSafeWindow still rejects on Saturdays and
	// Sundays and after 23:59, so those tests pass only on weekdays before
	// 23:59 local time. CurrentSession's own fixed market hours still gate
	// /webhook ingress, which tests that path skip around.
	clock, err := markethours.NewClock("Asia/Tokyo", "00:00", "23:59", "00:00", "23:59", "REJECT", nil)
	require.NoError(t, err)

	cd := cooldown.New(eph, cooldown.Config{
		BuySameTicker:  0,
		BuyAnyTicker:   0,
		SellSameTicker: 0,
		SellAnyTicker:  0,
	})

	ks := risk.NewKillSwitch(db)
	riskCtl := risk.NewController(db, ks, risk.Config{
		MaxOpenPositions:       10,
		MaxTotalExposure:       10_000_000,
		MaxPositionPerTicker:   5_000_000,
		MaxSectorExposurePct:   100,
		MaxDailyEntries:        50,
		MaxDailyTrades:         100,
		MaxDailyLoss:           -1_000_000,
		MaxConsecutiveLosses:   10,
		EstimatedPricePerShare: 2000,
	})

	bl := blacklist.New(db, 3, time.Hour)
	validator := validate.New(db, ks, clock, bl, riskCtl, validate.Config{MinQuantity: 1, MaxQuantity: 100_000})
	rec := reconcile.New(db)

	deps := Deps{
		DB:                  db,
		Ephemeral:           eph,
		Cooldown:            cd,
		Clock:               clock,
		KillSwitch:          ks,
		Risk:                riskCtl,
		Blacklist:           bl,
		Validator:           validator,
		Reconciler:          rec,
		Audit:               nil,
		Notify:              nil,
		Stream:              nil,
		Security:            Security{Passphrase: "test-pass", APIKey: "test-key", AdminPassword: "test-admin"},
		SignalTTL:           15 * time.Minute,
		HeartbeatStaleAfter: 5 * time.Minute,
	}

	return NewServer("127.0.0.1", 0, deps)
}
