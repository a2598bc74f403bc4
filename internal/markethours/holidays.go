package markethours

import "time"

// Days on which liquidity providers do not quote, every year (UTC dates).
var fxHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.December, 25}, // Christmas
}

var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(fxHolidays))
	for _, h := range fxHolidays {
		holidaySet[dateKey(h.month, h.day)] = true
	}
}

// IsHoliday returns true if the UTC date of t is an FX market holiday.
func IsHoliday(t time.Time) bool {
	u := t.UTC()
	return holidaySet[dateKey(u.Month(), u.Day())]
}

func dateKey(month time.Month, day int) string {
	return time.Date(2000, month, day, 0, 0, 0, 0, time.UTC).Format("01-02")
}
