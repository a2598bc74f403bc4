// Package markethours knows when the spot FX market trades.
package markethours

import (
	"fmt"
	"time"
)

// The FX week opens Sunday 22:00 UTC (Sydney) and closes Friday 22:00 UTC
// (New York).
const (
	OpenWeekday  = time.Sunday
	CloseWeekday = time.Friday
	RolloverHour = 22
)

// searchHorizon bounds NextOpen/NextClose: a weekend plus a holiday.
const searchHorizon = 10 * 24 * time.Hour

// IsMarketOpen returns true if t falls inside the FX trading week and is not
// a market-wide holiday.
func IsMarketOpen(t time.Time) bool {
	u := t.UTC()
	if IsHoliday(u) {
		return false
	}
	switch u.Weekday() {
	case time.Saturday:
		return false
	case OpenWeekday:
		return u.Hour() >= RolloverHour
	case CloseWeekday:
		return u.Hour() < RolloverHour
	}
	return true
}

// NextOpen returns the next time the market opens after t, or t itself if
// the market is open.
func NextOpen(t time.Time) time.Time {
	return nextWhere(t, true)
}

// NextClose returns the next time the market closes after t, or t itself if
// the market is closed.
func NextClose(t time.Time) time.Time {
	return nextWhere(t, false)
}

// Sessions change on whole hours, so scanning hour boundaries is exact.
func nextWhere(t time.Time, open bool) time.Time {
	u := t.UTC()
	if IsMarketOpen(u) == open {
		return u
	}
	c := u.Truncate(time.Hour)
	for end := u.Add(searchHorizon); c.Before(end); {
		c = c.Add(time.Hour)
		if IsMarketOpen(c) == open {
			return c
		}
	}
	return c
}

// TimeUntilClose returns the duration until the market closes.
// Returns 0 if market is already closed.
func TimeUntilClose(t time.Time) time.Duration {
	return NextClose(t).Sub(t)
}

// TimeUntilOpen returns the duration until the next market open.
// Returns 0 if the market is open.
func TimeUntilOpen(t time.Time) time.Duration {
	return NextOpen(t).Sub(t)
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open - closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	return fmt.Sprintf("Market Closed - opens %s %s UTC (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(TimeUntilOpen(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
