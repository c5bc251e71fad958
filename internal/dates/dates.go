// Package dates converts the iMessage store's timestamps into local time.
//
// The store records dates as signed nanoseconds since 2001-01-01 00:00:00 UTC.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// AppleEpoch is the reference epoch for every date column in the store.
var AppleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimestampFactor converts stored nanoseconds to seconds.
const TimestampFactor = 1_000_000_000

const separator = ", "

// ToTime converts a raw store timestamp to local time.
// A zero timestamp means the column was never set.
func ToTime(ns int64) time.Time {
	return AppleEpoch.Add(time.Duration(ns)).Local()
}

// FromTime converts a local time to a raw store timestamp.
func FromTime(t time.Time) int64 {
	return int64(t.Sub(AppleEpoch) / time.Nanosecond)
}

// Format renders a timestamp the way the exported transcripts show it,
// e.g. "May 20, 2020 9:10:11 AM".
func Format(t time.Time) string {
	return t.Format("Jan 02, 2006 3:04:05 PM")
}

// ParseDateArg parses a YYYY-MM-DD CLI argument as local midnight and
// returns the equivalent raw store timestamp.
func ParseDateArg(arg string) (int64, error) {
	t, err := time.ParseInLocation("2006-01-02", arg, time.Local)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", arg, err)
	}
	return FromTime(t), nil
}

// ReadableDiff renders the duration between two timestamps as
// "2 days, 1 hour, 10 minutes, 1 second". Returns "" when end precedes start.
func ReadableDiff(start, end time.Time) string {
	seconds := int64(end.Sub(start) / time.Second)
	if seconds < 0 {
		return ""
	}

	var b strings.Builder

	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	write := func(n int64, unit string) {
		if n == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString(separator)
		}
		if n == 1 {
			fmt.Fprintf(&b, "1 %s", unit)
		} else {
			fmt.Fprintf(&b, "%d %ss", n, unit)
		}
	}
	write(days, "day")
	write(hours, "hour")
	write(minutes, "minute")
	write(secs, "second")
	return b.String()
}
