package reporter

import (
	"math"
	"time"

	"github.com/JakeFAU/pipeline-reporter/internal/textfmt"
)

// DefaultInterval is the snapshot cadence used when none is configured.
const DefaultInterval = 5000 * time.Millisecond

// Config controls a Reporter.
//   - Interval: how often an open stream is snapshotted (default 5s).
//   - TruncateLimit: display width for embedded payloads (default 200).
//   - Color: ANSI styling of the rendered report.
//
// Non-positive values fall back to their defaults; configuration never fails.
type Config struct {
	Interval      time.Duration
	TruncateLimit int
	Color         bool
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.TruncateLimit <= 0 {
		c.TruncateLimit = textfmt.DefaultLimit
	}
	return c
}

const maxIntervalMillis = math.MaxInt64 / int64(time.Millisecond)

// IntervalFromMillis converts a millisecond count to an interval, mapping
// non-positive input to DefaultInterval. Counts too large for a
// time.Duration are clamped to the largest representable interval.
func IntervalFromMillis(ms int64) time.Duration {
	if ms <= 0 {
		return DefaultInterval
	}
	if ms > maxIntervalMillis {
		return time.Duration(maxIntervalMillis) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
