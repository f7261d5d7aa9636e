// Package dashboard computes the chart-ready report facets: slip-status
// counts and cash/bill payment reconciliation sums over a creation-time
// window.
package dashboard

import (
	"fmt"
	"time"
)

// Filter is the raw report query. An explicit, parseable date range takes
// priority over year/month; with neither the report covers all time.
type Filter struct {
	Year      int
	Month     int
	StartDate string
	EndDate   string
}

// Range is the resolved creation-time window, inclusive on both ends.
type Range struct {
	From time.Time
	To   time.Time
}

// Key renders a stable cache key fragment for the range.
func (r *Range) Key() string {
	if r == nil {
		return "all"
	}
	return fmt.Sprintf("%d-%d", r.From.Unix(), r.To.Unix())
}

// Resolve turns the raw filter into a window, nil meaning all time.
// Malformed dates degrade to the next filter tier rather than failing.
func (f Filter) Resolve() *Range {
	if from, okFrom := parseDay(f.StartDate); okFrom {
		if to, okTo := parseDay(f.EndDate); okTo {
			return &Range{From: startOfDay(from), To: endOfDay(to)}
		}
	}

	if f.Year > 0 {
		if f.Month >= 1 && f.Month <= 12 {
			first := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
			return &Range{From: first, To: endOfDay(first.AddDate(0, 1, -1))}
		}
		return &Range{
			From: time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
			To:   endOfDay(time.Date(f.Year, time.December, 31, 0, 0, 0, 0, time.UTC)),
		}
	}

	return nil
}

func parseDay(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
