package stats

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ActiveWindow is how recently a user must have been seen to count as active.
const ActiveWindow = 30 * 24 * time.Hour

const onlineLabel = "en ligne"

// maxDaysAgo is the largest "Il y a Nj" a time.Duration can hold.
const maxDaysAgo = math.MaxInt64 / int64(24*time.Hour)

var daysAgoRe = regexp.MustCompile(`^il y a\s+(\d+)\s*j(?:ours?)?$`)

// IsActive reports whether a user last seen at `lastSeen` is active at `now`.
// A zero lastSeen (never logged in) is inactive.
func IsActive(lastSeen, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) <= ActiveWindow
}

// NormalizeLastSeen converts a "last seen" label as sent by the activity endpoint
// ("En ligne", "Il y a 12j") into a timestamp. Unknown labels, and day counts too large
// to be a date, yield the zero time.
func NormalizeLastSeen(label string, now time.Time) time.Time {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == onlineLabel {
		return now
	}
	m := daysAgoRe.FindStringSubmatch(label)
	if m == nil {
		return time.Time{}
	}
	days, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || days > maxDaysAgo {
		return time.Time{}
	}
	return now.AddDate(0, 0, -int(days))
}

func IsActiveByLastSeen(label string) bool {
	now := NowFunc()
	return IsActive(NormalizeLastSeen(label, now), now)
}
