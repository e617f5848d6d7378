package util

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LogThrottle rate-limits a repeating log site. Feed errors flooding in at
// wire speed must still surface, just not once per frame; suppressed
// occurrences are counted and reported with the next allowed line.
type LogThrottle struct {
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// NewLogThrottle allows one log line per interval with the given burst.
func NewLogThrottle(interval time.Duration, burst int) *LogThrottle {
	if burst <= 0 {
		burst = 1
	}
	return &LogThrottle{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether the caller should emit the line now. When it
// returns false the occurrence is counted instead.
func (t *LogThrottle) Allow() bool {
	if t.limiter.Allow() {
		return true
	}
	t.suppressed.Add(1)
	return false
}

// TakeSuppressed returns and resets the count of occurrences swallowed
// since the last allowed line.
func (t *LogThrottle) TakeSuppressed() int64 {
	return t.suppressed.Swap(0)
}
