// Package timeutil provides calendar-day utilities for Pulse Engagement Hub.
// Streaks, goal deadlines, and daily activity are all defined in terms of UTC
// calendar days so that the engine behaves the same regardless of where a
// worker instance runs. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DayOf truncates a time to its UTC calendar day (00:00:00 UTC).
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar day.
func Today() time.Time {
	return DayOf(time.Now())
}

// DiffDays returns the number of whole calendar days from a to b (b - a).
// The result is negative when b is an earlier day than a.
func DiffDays(a, b time.Time) int {
	da := DayOf(a)
	db := DayOf(b)
	return int(db.Sub(da).Hours() / 24)
}

// SameDay reports whether two times fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// IsToday reports whether the given time falls on the current UTC day.
func IsToday(t time.Time) bool {
	return SameDay(t, time.Now())
}

// IsYesterday reports whether the given time falls on the previous UTC day.
func IsYesterday(t time.Time) bool {
	return DiffDays(t, time.Now()) == 1
}

// DaysSince returns the number of whole calendar days elapsed since the given
// time. Returns 0 for times on the current day.
func DaysSince(t time.Time) int {
	return DiffDays(t, time.Now())
}

// DaysBetween returns the number of calendar days from start to end.
// A goal starting and ending on the same day spans 0 days.
func DaysBetween(start, end time.Time) int {
	return DiffDays(start, end)
}

// AddDays returns the time shifted by the given number of calendar days.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	return DayOf(t)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	return DayOf(t).Add(24*time.Hour - time.Nanosecond)
}

// StartOfWeek returns the start of the ISO week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	day := DayOf(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// StartOfMonth returns the start of the month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a time as an ISO date (YYYY-MM-DD) in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDate parses an ISO date (YYYY-MM-DD) as a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
