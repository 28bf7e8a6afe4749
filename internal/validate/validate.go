// Package validate implements the pre-dispatch safety system of spec §4.6:
// five ordered levels, plus the day-trading sub-check folded in as level 3.5.
// Grounded on
// _examples/original_source/relay_server/app/services/pre_order_validation.py
// and day_trading_check.py.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"kabuto-relay/internal/blacklist"
	"kabuto-relay/internal/markethours"
	"kabuto-relay/internal/risk"
	"kabuto-relay/internal/store"
)

var tickerPattern = regexp.MustCompile(`^\d{4}$`)

// Result is the tagged-sum-type outcome of Validate, per spec §9. Checks
// records the OK/BLOCKED state of every level reached, mirroring the
// source's returned checks dict.
type Result struct {
	Allowed bool
	Reason  string
	Checks  map[string]string
}

// Config carries the validator's own parameter bounds (spec §4.6 level 3),
// distinct from risk.Config's exposure limits.
type Config struct {
	MinQuantity int
	MaxQuantity int
}

// Validator runs the five-level check in order, short-circuiting on the
// first failure exactly as the source does.
type Validator struct {
	db         *store.DB
	killSwitch *risk.KillSwitch
	clock      *markethours.Clock
	blacklist  *blacklist.Service
	risk       *risk.Controller
	cfg        Config
}

// New builds a Validator.
func New(db *store.DB, killSwitch *risk.KillSwitch, clock *markethours.Clock, bl *blacklist.Service, riskCtl *risk.Controller, cfg Config) *Validator {
	return &Validator{db: db, killSwitch: killSwitch, clock: clock, blacklist: bl, risk: riskCtl, cfg: cfg}
}

// Validate runs the full pre-dispatch check for a buy/sell order.
func (v *Validator) Validate(ticker, action string, quantity int, priceType string) (Result, error) {
	checks := map[string]string{}

	enabled, err := v.killSwitch.IsTradingEnabled()
	if err != nil {
		return Result{}, err
	}
	if !enabled {
		checks["kill_switch"] = "BLOCKED"
		return Result{Allowed: false, Reason: "kill_switch_active", Checks: checks}, nil
	}
	checks["kill_switch"] = "OK"

	if !v.clock.IsSafeWindow(time.Now()) {
		checks["market_hours"] = "BLOCKED"
		return Result{Allowed: false, Reason: "outside_trading_hours", Checks: checks}, nil
	}
	checks["market_hours"] = "OK"

	errs, err := v.validateParameters(ticker, action, quantity, priceType)
	if err != nil {
		return Result{}, err
	}
	if len(errs) > 0 {
		checks["parameters"] = "BLOCKED"
		return Result{Allowed: false, Reason: "parameter_validation_failed: " + strings.Join(errs, ", "), Checks: checks}, nil
	}
	checks["parameters"] = "OK"

	ok, reason, err := v.checkDayTrading(ticker, action)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		checks["day_trading"] = "BLOCKED"
		return Result{Allowed: false, Reason: "day_trading_violation: " + reason, Checks: checks}, nil
	}
	checks["day_trading"] = "OK"

	ok, reason, err = v.checkDailyLimits(action)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		checks["daily_limits"] = "BLOCKED"
		return Result{Allowed: false, Reason: reason, Checks: checks}, nil
	}
	checks["daily_limits"] = "OK"

	if action == "buy" {
		decision, err := v.risk.Validate(ticker, action, quantity, v.risk.EstimatedPrice(), "")
		if err != nil {
			return Result{}, err
		}
		if !decision.Allowed {
			checks["risk_limits"] = "BLOCKED"
			return Result{Allowed: false, Reason: decision.Reason, Checks: checks}, nil
		}
	}
	checks["risk_limits"] = "OK"

	return Result{Allowed: true, Reason: "all_checks_passed", Checks: checks}, nil
}

func (v *Validator) validateParameters(ticker, action string, quantity int, priceType string) ([]string, error) {
	var errs []string

	if ticker == "" {
		return []string{"ticker is required"}, nil
	}
	if !tickerPattern.MatchString(ticker) {
		errs = append(errs, fmt.Sprintf("invalid ticker format: %s (must be 4-digit number)", ticker))
	}
	banned, err := v.blacklist.IsBlacklisted(ticker)
	if err != nil {
		return nil, err
	}
	if banned {
		errs = append(errs, fmt.Sprintf("ticker %s is blacklisted", ticker))
	}

	if action != "buy" && action != "sell" {
		errs = append(errs, fmt.Sprintf("invalid action: %s (must be 'buy' or 'sell')", action))
		return errs, nil
	}

	position, err := v.db.GetPosition(ticker)
	if err != nil {
		return nil, err
	}
	if action == "sell" && (position == nil || position.Quantity <= 0) {
		errs = append(errs, fmt.Sprintf("cannot sell %s: no position exists", ticker))
	}

	if quantity <= 0 {
		return append(errs, "quantity must be positive"), nil
	}
	if quantity%100 != 0 {
		errs = append(errs, fmt.Sprintf("quantity must be multiple of 100 (got %d)", quantity))
	}
	if quantity < v.cfg.MinQuantity {
		errs = append(errs, fmt.Sprintf("quantity too small: %d (minimum %d)", quantity, v.cfg.MinQuantity))
	}
	if quantity > v.cfg.MaxQuantity {
		errs = append(errs, fmt.Sprintf("quantity too large: %d (maximum %d)", quantity, v.cfg.MaxQuantity))
	}
	if action == "sell" && position != nil && quantity > position.Quantity {
		errs = append(errs, fmt.Sprintf("insufficient quantity to sell: %d > %d", quantity, position.Quantity))
	}

	if priceType != "market" {
		errs = append(errs, fmt.Sprintf("only market orders allowed (got %s)", priceType))
	}

	return errs, nil
}

// checkDayTrading implements the 差金決済 (same-day settlement) guard: a
// ticker bought today cannot be sold today and vice versa.
func (v *Validator) checkDayTrading(ticker, action string) (bool, string, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location()).Unix()

	fills, err := v.db.TodayFillsForTicker(ticker, dayStart, dayEnd)
	if err != nil {
		return false, "", err
	}

	opposite := "sell"
	if action == "sell" {
		opposite = "buy"
	}

	var lastOpposite *store.ExecutionLog
	for _, f := range fills {
		if f.Action != opposite {
			continue
		}
		if lastOpposite == nil || f.ExecutedAt > lastOpposite.ExecutedAt {
			lastOpposite = f
		}
	}
	if lastOpposite == nil {
		return true, "", nil
	}

	when := time.Unix(lastOpposite.ExecutedAt, 0).In(now.Location()).Format("15:04:05")
	if action == "buy" {
		return false, fmt.Sprintf("%s was sold today at %s; cannot buy back same day", ticker, when), nil
	}
	return false, fmt.Sprintf("%s was bought today at %s; cannot sell same day", ticker, when), nil
}

func (v *Validator) checkDailyLimits(action string) (bool, string, error) {
	stats, err := v.db.GetOrCreateDailyStats(store.DateKey(time.Now()))
	if err != nil {
		return false, "", err
	}
	// checkDailyLimits mirrors risk.Controller's own daily-limit predicate,
	// kept separate so this level's reason strings match the
	// source's distinct entry/trade-limit messages.
	return v.limitsWithin(action, stats)
}

func (v *Validator) limitsWithin(action string, stats *store.DailyStats) (bool, string, error) {
	maxEntries, maxTrades := v.risk.Limits()
	if action == "buy" && stats.EntryCount >= maxEntries {
		return false, fmt.Sprintf("daily_entry_limit_exceeded: %d/%d", stats.EntryCount, maxEntries), nil
	}
	if stats.TotalTrades >= maxTrades {
		return false, fmt.Sprintf("daily_trade_limit_exceeded: %d/%d", stats.TotalTrades, maxTrades), nil
	}
	return true, "", nil
}
