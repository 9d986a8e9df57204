package utils

import (
	"fmt"
	"time"
)

// DayKey is the YYMMDD bucket a rental number sequence is counted in
func DayKey(t time.Time) string {
	return t.UTC().Format("060102")
}

// FormatRentalNumber renders prefix + YYMMDD + zero-padded sequence, e.g. ALQ240315001.
// Sequences above 999 widen instead of wrapping.
func FormatRentalNumber(prefix, dayKey string, seq int64) string {
	return fmt.Sprintf("%s%s%03d", prefix, dayKey, seq)
}
