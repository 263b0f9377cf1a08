package fieldreport

import (
	"fmt"
	"strings"
	"time"
)

// TimeRange is the half-open interval [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Window names one of the standard aggregation periods.
type Window string

const (
	WindowDaily  Window = "daily"
	WindowWeekly Window = "weekly"
)

// weeklySpan is the trailing period covered by WindowWeekly.
const weeklySpan = 7 * 24 * time.Hour

// ParseWindow accepts "daily"/"weekly" (case-insensitive) and the
// "day"/"week" shorthands.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "today":
		return WindowDaily, nil
	case "weekly", "week":
		return WindowWeekly, nil
	default:
		return "", fmt.Errorf("unknown report window %q (want daily or weekly)", s)
	}
}

// Range resolves the window against now. Daily covers the local calendar
// day of now; weekly covers the trailing seven days up to and including now.
func (w Window) Range(now time.Time) TimeRange {
	switch w {
	case WindowWeekly:
		return TimeRange{From: now.Add(-weeklySpan), To: now.Add(time.Nanosecond)}
	default:
		y, m, d := now.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		return TimeRange{From: start, To: start.AddDate(0, 0, 1)}
	}
}

// Title is the capitalized report label used in prompts and headers.
func (w Window) Title() string {
	if w == WindowWeekly {
		return "Weekly"
	}
	return "Daily"
}
