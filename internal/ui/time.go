package ui

import (
	"fmt"
	"time"
)

// FormatTimeAgo returns a compact age string like "2d ago", or "-" when
// the time is unknown.
func FormatTimeAgo(then time.Time, now time.Time) string {
	if then.IsZero() || then.After(now) {
		return "-"
	}
	return FormatDurationShort(now.Sub(then)) + " ago"
}

// FormatDurationShort formats a duration using short units (s/m/h/d).
func FormatDurationShort(duration time.Duration) string {
	if duration < 0 {
		duration = 0
	}

	seconds := int64(duration.Truncate(time.Second).Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dd", hours/24)
}

// RemainingDays converts a remaining duration to whole days, never
// negative.
func RemainingDays(remaining time.Duration) int {
	if remaining < 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}
