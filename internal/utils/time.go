package utils

import (
	"strings"
	"time"
)

const layoutDateTime = "2006-01-02 15:04"

// Clock is injected where deterministic time matters.
type Clock func() time.Time

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ParseDateTime parses "YYYY-MM-DD HH:MM" or RFC3339.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(layoutDateTime, s, time.UTC)
}

// FormatDateTime formats time to "YYYY-MM-DD HH:MM" in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(layoutDateTime)
}
