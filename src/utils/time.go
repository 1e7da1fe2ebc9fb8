package utils

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

func GetMinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}

	return b
}

func GetMaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}

// ParseDate accepts either a calendar date (2024-05-01) or a full RFC3339
// timestamp and returns the instant in UTC.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate: unrecognized date %q, want %s or RFC3339", value, dateLayout)
	}

	return t.UTC(), nil
}
