package risk

import (
	"time"

	"kabuto-relay/internal/store"
)

// Config mirrors config.RiskConfig; kept as its own type so this package does
// not import internal/config (avoiding a cyclic-dependency layering, per the
// teacher's constructor-injection style and spec §9's cyclic-dependency note).
type Config struct {
	MaxOpenPositions       int
	MaxTotalExposure       float64
	MaxPositionPerTicker   float64
	MaxSectorExposurePct   float64 // 0-100
	MaxDailyEntries        int
	MaxDailyTrades         int
	MaxDailyLoss           float64
	MaxConsecutiveLosses   int
	EstimatedPricePerShare float64
}

// Controller is the last-line-of-defense risk gate of spec §4.10, checked
// independently of the pre-dispatch validator's own limit checks so that a
// validator bug can never bypass it.
type Controller struct {
	db         *store.DB
	killSwitch *KillSwitch
	cfg        Config
}

// NewController builds a Controller.
func NewController(db *store.DB, killSwitch *KillSwitch, cfg Config) *Controller {
	return &Controller{db: db, killSwitch: killSwitch, cfg: cfg}
}

// Decision is the tagged-sum-type result of Validate, per spec §9.
type Decision struct {
	Allowed bool
	Reason  string
}

// Validate runs the ordered checks of spec §4.10: kill-switch, daily hard
// limits, position/exposure limits (buy only), then the auto-kill-switch
// breach check — activating the switch itself when it fires, exactly as the
// source's validate_order does.
func (c *Controller) Validate(ticker, action string, quantity int, price float64, sector string) (Decision, error) {
	enabled, err := c.killSwitch.IsTradingEnabled()
	if err != nil {
		return Decision{}, err
	}
	if !enabled {
		return Decision{Allowed: false, Reason: "kill_switch_active"}, nil
	}

	if ok, err := c.checkDailyLimits(action); err != nil {
		return Decision{}, err
	} else if !ok {
		return Decision{Allowed: false, Reason: "daily_limit_exceeded"}, nil
	}

	if action == "buy" {
		positionValue := float64(quantity) * price
		ok, err := c.checkPositionLimits(ticker, positionValue, sector)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Allowed: false, Reason: "position_limit_exceeded"}, nil
		}
	}

	trigger, _, err := c.CheckAutoKillSwitch()
	if err != nil {
		return Decision{}, err
	}
	if trigger {
		return Decision{Allowed: false, Reason: "auto_kill_switch_triggered"}, nil
	}

	return Decision{Allowed: true, Reason: "all_checks_passed"}, nil
}

// CheckAutoKillSwitch evaluates today's DailyStats against the auto-kill
// predicates (consecutive losses, daily loss, daily trade count) and
// activates the switch if any breaches, per spec §4.10. It is called both
// from Validate's buy-side pre-dispatch path and, unconditionally of
// action, from the fill-report path right after RecordFill — spec §4.10
// requires every successful fill, not just buy-side pre-dispatch checks, to
// re-evaluate the predicates (Testable Scenario 6: a run of sell-only
// losses must trip the switch on its own).
func (c *Controller) CheckAutoKillSwitch() (bool, string, error) {
	trigger, reason, err := c.shouldTriggerAutoKillSwitch()
	if err != nil {
		return false, "", err
	}
	if !trigger {
		return false, "", nil
	}
	if err := c.killSwitch.Activate("auto_trigger", reason); err != nil {
		return false, "", err
	}
	return true, reason, nil
}

func (c *Controller) todayStats() (*store.DailyStats, error) {
	return c.db.GetOrCreateDailyStats(store.DateKey(time.Now()))
}

func (c *Controller) checkDailyLimits(action string) (bool, error) {
	stats, err := c.todayStats()
	if err != nil {
		return false, err
	}
	if action == "buy" && stats.EntryCount >= c.cfg.MaxDailyEntries {
		return false, nil
	}
	if stats.TotalTrades >= c.cfg.MaxDailyTrades {
		return false, nil
	}
	return true, nil
}

func (c *Controller) checkPositionLimits(ticker string, positionValue float64, sector string) (bool, error) {
	positions, err := c.db.GetAllPositions()
	if err != nil {
		return false, err
	}

	existing, err := c.db.GetPosition(ticker)
	if err != nil {
		return false, err
	}

	if len(positions) >= c.cfg.MaxOpenPositions && existing == nil {
		return false, nil
	}

	totalExposure, err := c.db.TotalExposure()
	if err != nil {
		return false, err
	}
	if totalExposure+positionValue > c.cfg.MaxTotalExposure {
		return false, nil
	}

	if existing != nil {
		if float64(existing.Quantity)*existing.AvgCost+positionValue > c.cfg.MaxPositionPerTicker {
			return false, nil
		}
	} else if positionValue > c.cfg.MaxPositionPerTicker {
		return false, nil
	}

	if sector != "" {
		sectorExposure, err := c.db.SectorExposure(sector)
		if err != nil {
			return false, err
		}
		maxSectorExposure := c.cfg.MaxTotalExposure * (c.cfg.MaxSectorExposurePct / 100.0)
		if sectorExposure+positionValue > maxSectorExposure {
			return false, nil
		}
	}

	return true, nil
}

func (c *Controller) shouldTriggerAutoKillSwitch() (bool, string, error) {
	stats, err := c.todayStats()
	if err != nil {
		return false, "", err
	}
	if stats.ConsecutiveLosses >= c.cfg.MaxConsecutiveLosses {
		return true, "consecutive losses limit reached", nil
	}
	if stats.TotalPnL <= c.cfg.MaxDailyLoss {
		return true, "daily loss limit reached", nil
	}
	if stats.TotalTrades >= c.cfg.MaxDailyTrades {
		return true, "daily trade count limit reached", nil
	}
	return false, "", nil
}

// EstimatedPrice returns the configured conservative per-share estimate used
// for exposure projection when no live quote is available (§9 Open Question
// #3).
func (c *Controller) EstimatedPrice() float64 {
	return c.cfg.EstimatedPricePerShare
}

// Config returns the Controller's configured thresholds, for callers (the
// /status endpoint) that report exposure utilization against them.
func (c *Controller) Config() Config {
	return c.cfg
}

// Limits exposes the configured daily entry/trade caps for callers (the
// pre-dispatch validator) that report their own distinct reason strings
// against the same thresholds this Controller enforces.
func (c *Controller) Limits() (maxEntries, maxTrades int) {
	return c.cfg.MaxDailyEntries, c.cfg.MaxDailyTrades
}

// RecordFill updates today's DailyStats for one executed fill. outcome is
// optional (DESIGN.md Open Question #1).
func (c *Controller) RecordFill(action string, outcome *store.FillOutcome) (*store.DailyStats, error) {
	return c.db.ApplyFill(store.DateKey(time.Now()), action, outcome)
}
