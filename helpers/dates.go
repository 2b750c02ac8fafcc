package helpers

import (
	"context"
	"time"
)

// DayLayout is the calendar-day format used in provider requests and report captions
const DayLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date in t's own location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar day by n days
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// LookbackDays returns the n calendar days before today, oldest first.
// today itself is not included.
func LookbackDays(today time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for i := n; i >= 1; i-- {
		days = append(days, AddDays(today, -i))
	}
	return days
}

// FormatDay renders a calendar day as YYYY-MM-DD
func FormatDay(day time.Time) string {
	return day.Format(DayLayout)
}

// SleepContext pauses for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
