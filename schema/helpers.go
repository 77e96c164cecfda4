package schema

import (
	"math"
	"time"
)

// EpochSeconds converts t into fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromEpochSeconds converts fractional Unix seconds into a UTC time.
// Precision is kept to the microsecond.
func FromEpochSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	usec := math.Round(frac * 1e6)
	return time.Unix(int64(whole), int64(usec)*int64(time.Microsecond)).UTC()
}

// ShortSHA returns the first n characters of a commit hash.
func ShortSHA(sha string, n int) string {
	if n <= 0 || len(sha) <= n {
		return sha
	}
	return sha[:n]
}
