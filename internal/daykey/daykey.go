// Package daykey canonicalizes points in time into per-day bucket keys.
//
// A key is the epoch-millisecond value of the local-midnight instant of the
// day, rendered as a decimal string. Two timestamps on the same local
// calendar day always produce identical keys.
package daykey

import (
	"strconv"
	"time"
)

// Midnight zeroes the clock portion of t in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// For returns the bucket key for the calendar day containing t.
func For(t time.Time) string {
	return strconv.FormatInt(Midnight(t).UnixMilli(), 10)
}

// Time parses a key back into its local-midnight instant.
func Time(key string) (time.Time, bool) {
	ms, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).In(time.Local), true
}

// NextDay returns the local midnight one calendar day after t.
func NextDay(t time.Time) time.Time {
	return Midnight(t).AddDate(0, 0, 1)
}
