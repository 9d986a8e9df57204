package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate accepts either a yyyy-mm-dd calendar date (midnight UTC) or an RFC 3339 timestamp
func ParseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(dateLayout, dateStr); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q, expected yyyy-mm-dd or RFC 3339", dateStr)
	}
	return t.UTC(), nil
}

// FormatDate renders t as yyyy-mm-dd
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// RentalDays returns ceil((end - start) / 24h). Callers must ensure end is after start.
func RentalDays(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}
