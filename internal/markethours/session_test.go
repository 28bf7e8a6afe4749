package markethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustClock(t *testing.T) *Clock {
	t.Helper()
	c, err := NewClock("Asia/Tokyo", "09:30", "11:20", "13:00", "14:30", "queue", nil)
	require.NoError(t, err)
	return c
}

func jst(t *testing.T, ymd string, hm string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", ymd+" "+hm, loc)
	require.NoError(t, err)
	return ts
}

func TestCurrentSessionBoundaries(t *testing.T) {
	c := mustClock(t)
	// 2026-07-31 is a Friday.
	require.Equal(t, PreMarket, c.CurrentSession(jst(t, "2026-07-31", "07:00")))
	require.Equal(t, MorningAuction, c.CurrentSession(jst(t, "2026-07-31", "08:30")))
	require.Equal(t, MorningTrading, c.CurrentSession(jst(t, "2026-07-31", "10:00")))
	require.Equal(t, LunchBreak, c.CurrentSession(jst(t, "2026-07-31", "12:00")))
	require.Equal(t, AfternoonTrading, c.CurrentSession(jst(t, "2026-07-31", "13:30")))
	require.Equal(t, PostMarket, c.CurrentSession(jst(t, "2026-07-31", "15:30")))
}

func TestWeekendIsClosed(t *testing.T) {
	c := mustClock(t)
	// 2026-08-01 is a Saturday.
	require.Equal(t, Closed, c.CurrentSession(jst(t, "2026-08-01", "10:00")))
}

func TestConfiguredHolidayIsClosed(t *testing.T) {
	// 2026-07-31 is a Friday; only the configured holiday list should
	// close it, not the weekday check.
	c, err := NewClock("Asia/Tokyo", "09:30", "11:20", "13:00", "14:30", "queue", []string{"2026-07-31"})
	require.NoError(t, err)

	require.False(t, c.IsTradingDay(jst(t, "2026-07-31", "10:00")))
	require.Equal(t, Closed, c.CurrentSession(jst(t, "2026-07-31", "10:00")))
	require.True(t, c.IsTradingDay(jst(t, "2026-07-30", "10:00")))
}

func TestSafeWindowInclusiveBoundaries(t *testing.T) {
	c := mustClock(t)
	require.True(t, c.IsSafeWindow(jst(t, "2026-07-31", "09:30")))
	require.True(t, c.IsSafeWindow(jst(t, "2026-07-31", "11:20")))
	require.False(t, c.IsSafeWindow(jst(t, "2026-07-31", "11:21")))
	require.True(t, c.IsSafeWindow(jst(t, "2026-07-31", "13:00")))
	require.True(t, c.IsSafeWindow(jst(t, "2026-07-31", "14:30")))
}

func TestShouldAcceptSignal(t *testing.T) {
	c := mustClock(t)

	d := c.ShouldAcceptSignal(jst(t, "2026-07-31", "10:00"))
	require.True(t, d.Accept)
	require.Equal(t, "ACCEPT", d.Action)

	d = c.ShouldAcceptSignal(jst(t, "2026-07-31", "12:00"))
	require.False(t, d.Accept)
	require.Equal(t, "lunch_break", d.Reason)
	require.Equal(t, "QUEUE", d.Action)

	d = c.ShouldAcceptSignal(jst(t, "2026-07-31", "09:15"))
	require.False(t, d.Accept)
	require.Equal(t, "outside_safe_window", d.Reason)

	d = c.ShouldAcceptSignal(jst(t, "2026-08-01", "10:00"))
	require.False(t, d.Accept)
	require.Equal(t, "market_closed", d.Reason)
	require.Equal(t, "queue", d.Action)
}
