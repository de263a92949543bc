// Package timeutil holds the timezone-safe datetime construction shared
// by the normalizer and the notification scheduler.
package timeutil

import "time"

// At combines a civil date, a time-of-day and a zone into one instant.
// Both the normalizer and the scheduler's occurrence recovery build
// "the same wall-clock time on another day" through this single helper
// so the two cannot diverge.
func At(year int, month time.Month, day int, tod time.Time, loc *time.Location) time.Time {
	return time.Date(year, month, day, tod.Hour(), tod.Minute(), tod.Second(), tod.Nanosecond(), loc)
}

// SameWallClock reinterprets t's wall-clock fields in loc, discarding
// t's own zone. Used for floating (zone-less) source values.
func SameWallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// MinutesUntil returns the signed distance from now to t in minutes.
func MinutesUntil(t, now time.Time) float64 {
	return t.Sub(now).Minutes()
}
