package timeutil

import (
	"time"
)

// Clock returns the current instant. Services hold one so tests can pin time.
type Clock func() time.Time

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// StartOfDay returns 00:00:00 UTC of t's day
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last nanosecond of t's day in UTC
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// LastNDays returns the start of each of the n days ending with today, oldest first.
func LastNDays(today time.Time, n int) []time.Time {
	start := StartOfDay(today).AddDate(0, 0, -(n - 1))
	days := make([]time.Time, n)
	for i := 0; i < n; i++ {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ua, ub := a.UTC(), b.UTC()
	return ua.Year() == ub.Year() && ua.YearDay() == ub.YearDay()
}

// ParseDate parses a YYYY-MM-DD value as a UTC day.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
