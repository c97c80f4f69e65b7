package render

import (
	"time"

	"github.com/dustin/go-humanize"
)

// TimeAgo formats an epoch-millis timestamp relative to now.
func TimeAgo(millis int64) string {
	return TimeAgoFrom(millis, time.Now())
}

// TimeAgoFrom formats an epoch-millis timestamp relative to now.
func TimeAgoFrom(millis int64, now time.Time) string {
	if millis <= 0 {
		return "unknown"
	}
	return humanize.RelTime(time.UnixMilli(millis), now, "ago", "from now")
}
