// Package timestamp handles the wire timestamp format: int64 milliseconds
// since the Unix epoch. Zero means "not set"; every function here treats it
// that way instead of as 1970-01-01.
package timestamp

import (
	"fmt"
	"time"
)

// maxReasonable is 3000-01-01T00:00:00Z
const maxReasonable = 32503680000000

// Now returns the current time as Unix milliseconds
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts t to Unix milliseconds. The zero time maps to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time. 0 maps to the zero time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format renders ms as RFC3339 in UTC, or "" when unset
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Since returns the time elapsed since ms, or 0 when unset
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}

// Validate rejects negative timestamps and ones past the year 3000, which
// usually means seconds or nanoseconds were sent instead of milliseconds
func Validate(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", ms)
	}
	if ms > maxReasonable {
		return fmt.Errorf("timestamp too far in future: %d", ms)
	}
	return nil
}
