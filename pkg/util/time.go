package util

import (
	"time"
)

// HourOfDay buckets a timestamp into its UTC wall clock hour
func HourOfDay(t time.Time) int {
	return t.UTC().Hour()
}

func MinutesBetween(from time.Time, to time.Time) float64 {
	return to.Sub(from).Minutes()
}
