package utils

import (
	"fmt"
	"regexp"
	"time"
)

var transitionReasonRegex = regexp.MustCompile(`\(([^)]+)\)`)

// ParseTransitionDate extracts the timestamp the platform embeds in an
// instance state transition reason, e.g.
// "User initiated (2026-08-30 14:05:00 GMT)".
func ParseTransitionDate(reason string) (time.Time, error) {
	matches := transitionReasonRegex.FindStringSubmatch(reason)
	if len(matches) < 2 {
		return time.Time{}, fmt.Errorf("no date found in string: %s", reason)
	}

	dateStr := matches[1]

	layout := "2006-01-02 15:04:05 MST"
	return time.Parse(layout, dateStr)
}

// FormatRunningTime renders an accrued running duration the way it reads in
// a chat message, whole days plus hours.
func FormatRunningTime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if days == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}
