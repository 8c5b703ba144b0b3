package stm

import (
	"go.uber.org/atomic"
)

// clock is the process-wide commit clock. Every successful mutating commit
// advances it by one and stamps the written cells with the new value.
// Validation compares cell versions against the versions recorded at read
// time, so the clock only ever needs to move forward.
var clock atomic.Uint64

// cellIDs issues the stable identity carried by every cell. The id keys the
// transaction log and orders commit-lock acquisition.
var cellIDs atomic.Uint64

// nextCellID returns a fresh process-unique cell id. Ids start at 1 so the
// zero value never collides with a live cell.
func nextCellID() uint64 {
	return cellIDs.Inc()
}

// ClockValue returns the current value of the commit clock. It is mainly
// useful for diagnostics; transactions capture it themselves.
func ClockValue() uint64 {
	return clock.Load()
}
