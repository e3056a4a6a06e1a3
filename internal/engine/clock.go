package engine

import "time"

// Clock supplies wall-clock timestamps for ledger entries and carts.
//
// Timestamps are informational only. Ledger order comes from the store's
// seq column, never from the clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
