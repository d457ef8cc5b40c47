package puzzle

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the canonical play date format
	DateLayout = "2006-01-02"
	// MonthLayout identifies a leaderboard month
	MonthLayout = "2006-01"
)

// DateKey formats t as a play date in its own location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthKey formats t as a leaderboard month in its own location
func MonthKey(t time.Time) string {
	return t.Format(MonthLayout)
}

// ParseDate parses a YYYY-MM-DD play date
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// LastDayOfMonth returns the number of days in t's month
func LastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// IsFreezeWindow reports whether t falls on the month's last day, when play is
// closed and the month's results are shown instead
func IsFreezeWindow(t time.Time) bool {
	return t.Day() >= LastDayOfMonth(t)
}

// MonthRange returns the first and last play dates of a YYYY-MM month
func MonthRange(month string) (string, string, error) {
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return "", "", fmt.Errorf("invalid month %q: %w", month, err)
	}
	end := time.Date(start.Year(), start.Month(), LastDayOfMonth(start), 0, 0, 0, 0, time.UTC)
	return DateKey(start), DateKey(end), nil
}
