// Package clock abstracts wall time and periodic tickers so timer-driven code
// can be exercised deterministically.
package clock

import "time"

// Clock returns the current time and creates tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
