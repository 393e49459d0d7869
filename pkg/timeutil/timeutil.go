// Package timeutil provides calendar-date utilities for streak and
// leaderboard-period computations. All streak math is done on server-local
// calendar dates, so two submissions at 23:59 and 00:01 count as two
// distinct activity days regardless of how close they are on the clock.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// serverLocation is the timezone used for all calendar-date math.
// Defaults to the server's local timezone; override with SetLocation
// during startup if the deployment needs a fixed zone.
var serverLocation = time.Local

// SetLocation overrides the timezone used for calendar-date math.
// Must be called before any date computation, typically from main.
func SetLocation(loc *time.Location) {
	if loc != nil {
		serverLocation = loc
	}
}

// Location returns the timezone currently used for calendar-date math.
func Location() *time.Location {
	return serverLocation
}

// Now returns the current time in the server timezone.
func Now() time.Time {
	return time.Now().In(serverLocation)
}

// ToServer converts a time to the server timezone.
func ToServer(t time.Time) time.Time {
	return t.In(serverLocation)
}

// Date creates a time at midnight in the server timezone.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, serverLocation)
}

// StartOfDay returns the start of the day (00:00:00) in the server timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToServer(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, serverLocation)
}

// Truncate to calendar date is the canonical streak representation:
// a DATE column in the database, midnight server time in memory.

// DateOnly truncates a time to its calendar date in the server timezone.
// Alias of StartOfDay with a name that reads better at call sites that
// store activity dates.
func DateOnly(t time.Time) time.Time {
	return StartOfDay(t)
}

// IsSameDay checks if two times fall on the same calendar date.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := ToServer(t1), ToServer(t2)
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the calendar day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	next := StartOfDay(t1).AddDate(0, 0, 1)
	return IsSameDay(next, t2)
}

// DaysBetween returns the number of calendar days from t1 to t2.
// Positive when t2 is after t1, negative when before. Uses AddDate
// instead of duration division so DST transitions cannot skew the count.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	days := 0
	for a1.Before(a2) {
		a1 = a1.AddDate(0, 0, 1)
		days++
	}
	for a1.After(a2) {
		a1 = a1.AddDate(0, 0, -1)
		days--
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in the server timezone.
func FormatDateStr(t time.Time) string {
	return ToServer(t).Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) in the server timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, serverLocation)
}

// Leaderboard period windows.

// WindowStart returns the inclusive lower bound for a rolling window of
// the given number of days, anchored at now. A 7-day window at any point
// on Tuesday starts at 00:00:00 the previous Wednesday.
func WindowStart(now time.Time, days int) time.Time {
	return StartOfDay(now).AddDate(0, 0, -(days - 1))
}
