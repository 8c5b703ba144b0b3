package stm

import (
	"go.uber.org/atomic"
)

// tallies are process-wide engine counters. They are plain monotonic
// atomics with no synchronization against each other, good for spotting
// contention in a workload, not for exact accounting.
var tallies struct {
	commits       atomic.Uint64
	conflicts     atomic.Uint64
	retriesParked atomic.Uint64
	wakeups       atomic.Uint64
	userAborts    atomic.Uint64
}

// TallySnapshot is a point-in-time copy of the engine counters.
type TallySnapshot struct {
	// Commits counts successfully committed transactions.
	Commits uint64

	// Conflicts counts attempts discarded by commit-time validation.
	Conflicts uint64

	// RetriesParked counts transactions that blocked in retry.
	RetriesParked uint64

	// Wakeups counts parked transactions woken by a commit.
	Wakeups uint64

	// UserAborts counts transactions abandoned with a user error.
	UserAborts uint64
}

// Tallies returns a snapshot of the engine counters.
func Tallies() TallySnapshot {
	return TallySnapshot{
		Commits:       tallies.commits.Load(),
		Conflicts:     tallies.conflicts.Load(),
		RetriesParked: tallies.retriesParked.Load(),
		Wakeups:       tallies.wakeups.Load(),
		UserAborts:    tallies.userAborts.Load(),
	}
}

// ResetTallies zeroes the engine counters. Meant for benchmarks and load
// drivers that measure one phase at a time.
func ResetTallies() {
	tallies.commits.Store(0)
	tallies.conflicts.Store(0)
	tallies.retriesParked.Store(0)
	tallies.wakeups.Store(0)
	tallies.userAborts.Store(0)
}
