package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewDB(t.TempDir() + "/risk.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func defaultConfig() Config {
	return Config{
		MaxOpenPositions:       10,
		MaxTotalExposure:       5_000_000,
		MaxPositionPerTicker:   1_000_000,
		MaxSectorExposurePct:   40,
		MaxDailyEntries:        10,
		MaxDailyTrades:         20,
		MaxDailyLoss:           -200_000,
		MaxConsecutiveLosses:   5,
		EstimatedPricePerShare: 1000,
	}
}

func TestKillSwitchDefaultsEnabled(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)

	enabled, err := ks.IsTradingEnabled()
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestKillSwitchActivateDeactivate(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)

	require.NoError(t, ks.Activate("manual", "testing"))
	enabled, err := ks.IsTradingEnabled()
	require.NoError(t, err)
	require.False(t, enabled)

	status, err := ks.GetStatus()
	require.NoError(t, err)
	require.True(t, status.KillSwitchActive)
	require.Equal(t, "testing", status.Reason)
	require.Equal(t, "manual", status.ActivatedBy)

	require.NoError(t, ks.Deactivate("manual"))
	enabled, err = ks.IsTradingEnabled()
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestValidateBlocksWhenKillSwitchActive(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)
	require.NoError(t, ks.Activate("manual", "halt"))

	c := NewController(db, ks, defaultConfig())
	d, err := c.Validate("7203", "buy", 100, 2000, "")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, "kill_switch_active", d.Reason)
}

func TestValidateAllowsWithinLimits(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)
	c := NewController(db, ks, defaultConfig())

	d, err := c.Validate("7203", "buy", 100, 2000, "")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestValidateBlocksPositionLimitExceeded(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)
	cfg := defaultConfig()
	cfg.MaxPositionPerTicker = 100_000
	c := NewController(db, ks, cfg)

	d, err := c.Validate("7203", "buy", 1000, 2000, "")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, "position_limit_exceeded", d.Reason)
}

func TestAutoKillSwitchTriggersOnConsecutiveLosses(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)
	cfg := defaultConfig()
	cfg.MaxConsecutiveLosses = 2
	c := NewController(db, ks, cfg)

	_, err := c.RecordFill("sell", &store.FillOutcome{PnL: -100, IsWin: false})
	require.NoError(t, err)
	_, err = c.RecordFill("sell", &store.FillOutcome{PnL: -100, IsWin: false})
	require.NoError(t, err)

	d, err := c.Validate("7203", "sell", 100, 2000, "")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, "auto_kill_switch_triggered", d.Reason)

	enabled, err := ks.IsTradingEnabled()
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestCheckAutoKillSwitchTripsOnSellOnlyLossesWithoutValidate(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)
	cfg := defaultConfig()
	cfg.MaxConsecutiveLosses = 5
	c := NewController(db, ks, cfg)

	for i := 0; i < 5; i++ {
		_, err := c.RecordFill("sell", &store.FillOutcome{PnL: -100, IsWin: false})
		require.NoError(t, err)
	}

	// The fill-report path never calls Validate (which gates its
	// position-limit check to buy); CheckAutoKillSwitch must trip on its
	// own after the fifth sell loss, per spec §4.10 Testable Scenario 6.
	tripped, reason, err := c.CheckAutoKillSwitch()
	require.NoError(t, err)
	require.True(t, tripped)
	require.NotEmpty(t, reason)

	enabled, err := ks.IsTradingEnabled()
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestDailyEntryLimitBlocksBuys(t *testing.T) {
	db := newTestDB(t)
	ks := NewKillSwitch(db)
	cfg := defaultConfig()
	cfg.MaxDailyEntries = 1
	c := NewController(db, ks, cfg)

	_, err := c.RecordFill("buy", nil)
	require.NoError(t, err)

	d, err := c.Validate("7203", "buy", 100, 2000, "")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, "daily_limit_exceeded", d.Reason)
}
