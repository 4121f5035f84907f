package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Seconds converts a duration to fractional seconds rounded to milliseconds.
func Seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
