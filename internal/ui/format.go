package ui

import (
	"fmt"
	"time"
)

// RelativeTime formats a millisecond timestamp relative to now. Anything a
// week old or more shows as a short date.
func RelativeTime(timestamp int64, now time.Time) string {
	d := now.Sub(time.UnixMilli(timestamp))
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return time.UnixMilli(timestamp).In(now.Location()).Format("Jan 02")
	}
}

// BadgeText renders an unread count for the header badge, capped at "9+".
// Zero renders as the empty string.
func BadgeText(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 9:
		return "9+"
	default:
		return fmt.Sprintf("%d", count)
	}
}
