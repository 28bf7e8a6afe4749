package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/blacklist"
	"kabuto-relay/internal/markethours"
	"kabuto-relay/internal/risk"
	"kabuto-relay/internal/store"
)

func newTestValidator(t *testing.T) (*Validator, *store.DB) {
	t.Helper()
	db, err := store.NewDB(t.TempDir() + "/validate.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ks := risk.NewKillSwitch(db)
	riskCfg := risk.Config{
		MaxOpenPositions: 10, MaxTotalExposure: 5_000_000, MaxPositionPerTicker: 1_000_000,
		MaxSectorExposurePct: 40, MaxDailyEntries: 10, MaxDailyTrades: 20,
		MaxDailyLoss: -200_000, MaxConsecutiveLosses: 5, EstimatedPricePerShare: 1000,
	}
	riskCtl := risk.NewController(db, ks, riskCfg)

	clock, err := markethours.NewClock("Asia/Tokyo", "00:00", "23:59", "00:00", "23:59", "queue", nil)
	require.NoError(t, err)

	bl := blacklist.New(db, 3, 30*24*time.Hour)

	v := New(db, ks, clock, bl, riskCtl, Config{MinQuantity: 100, MaxQuantity: 10000})
	return v, db
}

func TestValidateRejectsBadTickerFormat(t *testing.T) {
	v, _ := newTestValidator(t)
	r, err := v.Validate("ABCD", "buy", 100, "market")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.Contains(t, r.Reason, "parameter_validation_failed")
}

func TestValidateRejectsSellWithoutPosition(t *testing.T) {
	v, _ := newTestValidator(t)
	r, err := v.Validate("7203", "sell", 100, "market")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.Contains(t, r.Reason, "no position exists")
}

func TestValidateRejectsNonMultipleOf100(t *testing.T) {
	v, _ := newTestValidator(t)
	r, err := v.Validate("7203", "buy", 150, "market")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.Contains(t, r.Reason, "multiple of 100")
}

func TestValidateRejectsBlacklistedTicker(t *testing.T) {
	v, db := newTestValidator(t)
	bl := blacklist.New(db, 3, 30*24*time.Hour)
	_, err := bl.Add("7203", "banned", store.BanPermanent, 0, "manual")
	require.NoError(t, err)

	r, err := v.Validate("7203", "buy", 100, "market")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.Contains(t, r.Reason, "blacklisted")
}

func TestValidateAllowsGoodBuy(t *testing.T) {
	v, _ := newTestValidator(t)
	r, err := v.Validate("7203", "buy", 100, "market")
	require.NoError(t, err)
	require.True(t, r.Allowed)
	require.Equal(t, "OK", r.Checks["kill_switch"])
	require.Equal(t, "OK", r.Checks["risk_limits"])
}

func TestValidateBlocksWhenKillSwitchActive(t *testing.T) {
	v, db := newTestValidator(t)
	ks := risk.NewKillSwitch(db)
	require.NoError(t, ks.Activate("manual", "halt"))

	r, err := v.Validate("7203", "buy", 100, "market")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.Equal(t, "kill_switch_active", r.Reason)
}

func TestValidateDayTradingViolation(t *testing.T) {
	v, db := newTestValidator(t)
	require.NoError(t, db.UpsertPosition(&store.Position{Ticker: "7203", Quantity: 100, AvgCost: 2000, EntrySignalID: "s1", EntryDate: time.Now().Unix()}))
	require.NoError(t, db.InsertExecutionLog(&store.ExecutionLog{
		ExecutionID: "e1", SignalID: "s1", OrderID: "o1", Action: "buy", Ticker: "7203",
		Quantity: 100, Price: 2000, TotalAmount: 200000, PositionEffect: "open", ExecutedAt: time.Now().Unix(),
	}))

	r, err := v.Validate("7203", "sell", 100, "market")
	require.NoError(t, err)
	require.False(t, r.Allowed)
	require.Contains(t, r.Reason, "day_trading_violation")
}
