// Package markethours classifies the current instant into a Japanese
// equities market session and decides whether a signal should be accepted,
// queued, or rejected, per spec §4.3. Grounded on
// _examples/original_source/relay_server/app/services/market_hours.py,
// expressed in the teacher's idiom (tagged sum type results, per
// SPEC_FULL.md §9/§10).
package markethours

import (
	"time"
)

// Session is one of the named trading sessions of spec §4.3.
type Session string

const (
	PreMarket        Session = "pre_market"
	MorningAuction    Session = "morning_auction"
	MorningTrading    Session = "morning_trading"
	LunchBreak        Session = "lunch_break"
	AfternoonAuction  Session = "afternoon_auction"
	AfternoonTrading  Session = "afternoon_trading"
	PostMarket        Session = "post_market"
	Closed            Session = "closed"
)

// Decision is the tagged-sum-type result of should-accept evaluation, per
// spec §9's "dynamic-typed report dictionaries become tagged sum types".
type Decision struct {
	Accept bool
	Reason string
	Action string // ACCEPT | QUEUE | REJECT
}

// Clock classifies instants against a configured timezone and safe window.
// AFTERNOON_AUCTION is carried as a named session for parity with the
// source's enum, but — as in the source — the boundary checks in
// CurrentSession never actually produce it: the source jumps directly from
// LUNCH_BREAK to AFTERNOON_TRADING at 12:30 (flagged, not "fixed", per
// SPEC_FULL.md's "follow what the original actually does" rule).
type Clock struct {
	Location       *time.Location
	MorningStart   time.Duration // minutes-since-midnight safe window bounds
	MorningEnd     time.Duration
	AfternoonStart time.Duration
	AfternoonEnd   time.Duration
	OffHoursAction string // REJECT | QUEUE
	IsHoliday      func(time.Time) bool // nil means "no holidays configured"
}

// NewClock builds a Clock from HH:MM window strings. holidays is a list of
// "YYYY-MM-DD" local-calendar dates (spec §4.3's "weekend or local-holiday
// calendar" CLOSED rule); a nil or empty list means no holidays configured.
func NewClock(tz string, morningStart, morningEnd, afternoonStart, afternoonEnd, offHoursAction string, holidays []string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	ms, err := parseHHMM(morningStart)
	if err != nil {
		return nil, err
	}
	me, err := parseHHMM(morningEnd)
	if err != nil {
		return nil, err
	}
	as, err := parseHHMM(afternoonStart)
	if err != nil {
		return nil, err
	}
	ae, err := parseHHMM(afternoonEnd)
	if err != nil {
		return nil, err
	}

	c := &Clock{
		Location: loc, MorningStart: ms, MorningEnd: me,
		AfternoonStart: as, AfternoonEnd: ae, OffHoursAction: offHoursAction,
	}

	if len(holidays) > 0 {
		set := make(map[string]bool, len(holidays))
		for _, d := range holidays {
			set[d] = true
		}
		c.IsHoliday = func(t time.Time) bool {
			return set[t.Format("2006-01-02")]
		}
	}

	return c, nil
}

func parseHHMM(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

// IsTradingDay reports whether t's date is a weekday and not a configured
// holiday.
func (c *Clock) IsTradingDay(t time.Time) bool {
	t = t.In(c.Location)
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if c.IsHoliday != nil && c.IsHoliday(t) {
		return false
	}
	return true
}

// CurrentSession classifies t into a Session.
func (c *Clock) CurrentSession(t time.Time) Session {
	t = t.In(c.Location)
	if !c.IsTradingDay(t) {
		return Closed
	}
	tod := timeOfDay(t)
	switch {
	case tod < 8*time.Hour:
		return PreMarket
	case tod < 9*time.Hour:
		return MorningAuction
	case tod < 11*time.Hour+30*time.Minute:
		return MorningTrading
	case tod < 12*time.Hour+30*time.Minute:
		return LunchBreak
	case tod < 15*time.Hour:
		return AfternoonTrading
	default:
		return PostMarket
	}
}

// IsSafeWindow reports whether t falls in the configured safe-trading
// sub-interval (spec §4.3), inclusive of both endpoints.
func (c *Clock) IsSafeWindow(t time.Time) bool {
	t = t.In(c.Location)
	if !c.IsTradingDay(t) {
		return false
	}
	tod := timeOfDay(t)
	inMorning := tod >= c.MorningStart && tod <= c.MorningEnd
	inAfternoon := tod >= c.AfternoonStart && tod <= c.AfternoonEnd
	return inMorning || inAfternoon
}

// ShouldAcceptSignal implements the ingress-time gate of spec §4.3.
func (c *Clock) ShouldAcceptSignal(t time.Time) Decision {
	session := c.CurrentSession(t)

	switch session {
	case Closed:
		return Decision{Accept: false, Reason: "market_closed", Action: c.OffHoursAction}
	case PreMarket:
		return Decision{Accept: false, Reason: "pre_market", Action: "QUEUE"}
	case LunchBreak:
		return Decision{Accept: false, Reason: "lunch_break", Action: "QUEUE"}
	case PostMarket:
		return Decision{Accept: false, Reason: "post_market", Action: c.OffHoursAction}
	case MorningAuction, AfternoonAuction:
		return Decision{Accept: false, Reason: "auction_period", Action: "QUEUE"}
	}

	if !c.IsSafeWindow(t) {
		return Decision{Accept: false, Reason: "outside_safe_window", Action: "QUEUE"}
	}
	return Decision{Accept: true, Reason: "trading_hours", Action: "ACCEPT"}
}

// Status is the computed market-state payload the /status endpoint serves.
type Status struct {
	Session             Session   `json:"session"`
	IsTradingDay        bool      `json:"is_trading_day"`
	IsSafeTradingWindow bool      `json:"is_safe_trading_window"`
	AcceptSignals       bool      `json:"accept_signals"`
	CurrentTime         time.Time `json:"current_time"`
}

// GetStatus builds the comprehensive market status of spec §6's /status.
func (c *Clock) GetStatus(t time.Time) Status {
	t = t.In(c.Location)
	decision := c.ShouldAcceptSignal(t)
	return Status{
		Session:             c.CurrentSession(t),
		IsTradingDay:        c.IsTradingDay(t),
		IsSafeTradingWindow: c.IsSafeWindow(t),
		AcceptSignals:       decision.Accept,
		CurrentTime:         t,
	}
}
