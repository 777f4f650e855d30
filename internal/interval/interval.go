// Package interval holds the calendar-date arithmetic shared by availability
// and conflict checks. All dates are calendar days at midnight UTC and all
// ranges are inclusive on both ends.
package interval

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	DisplayLayout = "02/01/2006"
)

// LastDate is the latest day a range may occupy. Stored dates are compared as
// YYYY-MM-DD text, which only orders correctly for four-digit years.
var LastDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Truncate drops the time of day, keeping the calendar date of t in its own location.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndDateInclusive returns the last occupied day of a range that starts on
// start and lasts durationDays days.
func EndDateInclusive(start time.Time, durationDays int) time.Time {
	return Truncate(start).AddDate(0, 0, durationDays-1)
}

// Fits reports whether a range of durationDays days starting on start ends on
// or before LastDate.
func Fits(start time.Time, durationDays int) bool {
	return !EndDateInclusive(start, durationDays).After(LastDate)
}

// ClampDate caps t at LastDate. Nothing stored ends later, so a clamped query
// bound selects the same rows.
func ClampDate(t time.Time) time.Time {
	if t.After(LastDate) {
		return LastDate
	}
	return Truncate(t)
}

// Overlaps reports whether two inclusive ranges share at least one day.
// Ranges touching on a boundary day overlap.
func Overlaps(aStart time.Time, aDays int, bStart time.Time, bDays int) bool {
	aStart, bStart = Truncate(aStart), Truncate(bStart)
	return !aStart.After(EndDateInclusive(bStart, bDays)) &&
		!bStart.After(EndDateInclusive(aStart, aDays))
}

// DaysInside counts the days of [start, start+days-1] that fall within [from, to].
func DaysInside(start time.Time, days int, from, to time.Time) int {
	lo := Truncate(start)
	hi := EndDateInclusive(start, days)
	from, to = Truncate(from), Truncate(to)
	if lo.Before(from) {
		lo = from
	}
	if hi.After(to) {
		hi = to
	}
	if hi.Before(lo) {
		return 0
	}
	return int(hi.Sub(lo).Hours()/24) + 1
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDisplay renders a date as DD/MM/YYYY.
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayLayout)
}
