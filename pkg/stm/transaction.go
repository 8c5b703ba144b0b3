package stm

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/meltpond/stm/internal/common"
)

// Tx is the per-invocation transaction state: the read/write log and the
// clock value captured at the start of the attempt. A Tx belongs to the
// goroutine executing the transaction and must not be shared or stored.
type Tx struct {
	regs registers

	// rv is the commit clock at the start of the attempt. When the clock
	// has not moved, no commit can have invalidated the read set, which
	// lets early conflict detection skip the per-entry scan.
	rv uint64
}

// readCell returns the transaction-visible value of c, recording a read
// entry on first contact.
func (tx *Tx) readCell(c *cell) (any, error) {
	if eagerConflict && clock.Load() != tx.rv && !tx.readSetConsistent() {
		return nil, errInconsistent
	}
	if lv, ok := tx.regs.lookup(c); ok {
		lv, v := lv.read()
		tx.regs.put(lv)
		return v, nil
	}
	v, ver := c.load()
	tx.regs.put(logVar{c: c, state: lvRead, readVer: ver, snapshot: v})
	return v, nil
}

// writeCell stages v for c, preserving any read observation already made so
// a later validation still checks the version seen before the write.
func (tx *Tx) writeCell(c *cell, v any) error {
	if lv, ok := tx.regs.lookup(c); ok {
		tx.regs.put(lv.write(v))
		return nil
	}
	tx.regs.put(logVar{c: c, state: lvWrite, pending: v})
	return nil
}

// readSetConsistent checks every validating entry against the current cell
// version, without locks. Version stores happen inside the writers' commit
// critical sections, so an unchanged version means the value read is still
// the committed one.
func (tx *Tx) readSetConsistent() bool {
	ok := true
	tx.regs.ascend(func(lv logVar) bool {
		if lv.validates() && lv.c.version.Load() != lv.readVer {
			ok = false
			return false
		}
		return true
	})
	return ok
}

// commit validates the log and publishes the pending writes atomically.
// Returns false when validation fails and the transaction must rerun.
//
// Two-phase: validate reads lock-free, take the commit locks of all written
// cells in ascending id order (deadlock-free by construction), revalidate
// the reads (a read-only cell whose commit lock is held by another committer
// counts as changed), then stamp every written cell with one fresh clock
// value.
// Waiters of mutated cells are signalled after the locks are released.
func (tx *Tx) commit() bool {
	if !tx.readSetConsistent() {
		return false
	}

	locked := make([]*cell, 0, tx.regs.size())
	tx.regs.ascend(func(lv logVar) bool {
		if lv.writes() {
			lv.c.mu.Lock()
			locked = append(locked, lv.c)
		}
		return true
	})

	// A read-only cell whose commit lock is held elsewhere may be mid-commit
	// with its version not stamped yet: count it as a conflict. TryLock never
	// blocks, so this cannot invert the lock order of the locks held here.
	busy := false
	if len(locked) > 0 {
		tx.regs.ascend(func(lv logVar) bool {
			if lv.validates() && !lv.writes() {
				if busy = !lv.c.mu.TryLock(); !busy {
					lv.c.mu.Unlock()
				}
			}
			return !busy
		})
	}

	if busy || !tx.readSetConsistent() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
		return false
	}

	if len(locked) == 0 {
		// Read-only: validated, nothing to publish.
		return true
	}

	newV := clock.Inc()
	var woken []*waiter
	tx.regs.ascend(func(lv logVar) bool {
		if lv.writes() {
			c := lv.c
			c.value = lv.pending
			c.version.Store(newV)
			woken = append(woken, c.waiters...)
			c.waiters = nil
		}
		return true
	})

	for i := len(locked) - 1; i >= 0; i-- {
		locked[i].mu.Unlock()
	}
	for _, w := range woken {
		w.notify()
	}
	return true
}

// combine folds the read observations of an abandoned Or alternative into
// the log as obsolete entries, so that a blocked retry registers on the
// union of every alternative's dependencies. Entries the live log already
// holds win, so a cell observed by both branches keeps the version recorded
// by the surviving branch.
func (tx *Tx) combine(other registers) {
	other.ascend(func(lv logVar) bool {
		ob, ok := lv.obsolete()
		if !ok {
			return true
		}
		if _, exists := tx.regs.lookup(lv.c); !exists {
			tx.regs.put(ob)
		}
		return true
	})
}

// liveGoroutines tracks goroutines currently inside Atomically. A second
// top-level transaction on the same goroutine would have side-effecting
// commit semantics visible to the outer one, so it is rejected hard.
var liveGoroutines sync.Map

func enterAtomically() {
	gid := common.GoroutineID()
	if _, running := liveGoroutines.LoadOrStore(gid, struct{}{}); running {
		panic("stm: Atomically called inside a running transaction")
	}
}

func exitAtomically() {
	liveGoroutines.Delete(common.GoroutineID())
}

// Atomically runs f as a transaction: reads and writes of TVars through the
// supplied Tx happen atomically with respect to every other transaction.
//
// f may run several times before its log validates, so it must be free of
// side effects beyond TVar access. Returning ErrRetry blocks the
// transaction until one of the variables it read changes. Returning any
// non-control error aborts without committing and surfaces the error to the
// caller unchanged. A panic inside f commits nothing and propagates.
//
// Calling Atomically while a transaction is already running on the same
// goroutine panics.
func Atomically[T any](f func(*Tx) (T, error)) (T, error) {
	return run(context.Background(), 0, f)
}

// AtomicallyCtx is Atomically with cancellation: ctx is checked before
// every attempt and while blocked in retry, and its error is returned when
// it fires first. Cancellation never interrupts a commit in progress.
func AtomicallyCtx[T any](ctx context.Context, f func(*Tx) (T, error)) (T, error) {
	return run(ctx, 0, f)
}

// AtomicallyTimeout is Atomically with a bound on blocking: a retry parked
// longer than timeout returns ErrTimedOut. The semantics are otherwise
// unchanged.
func AtomicallyTimeout[T any](f func(*Tx) (T, error), timeout time.Duration) (T, error) {
	return run(context.Background(), timeout, f)
}

func run[T any](ctx context.Context, timeout time.Duration, f func(*Tx) (T, error)) (T, error) {
	enterAtomically()
	defer exitAtomically()

	tx := &Tx{regs: newRegisters()}
	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		tx.rv = clock.Load()

		v, err := f(tx)
		switch {
		case err == nil:
			if tx.commit() {
				tallies.commits.Inc()
				return v, nil
			}
			tallies.conflicts.Inc()
			log.WithFields(log.Fields{
				"attempt":   attempt,
				"footprint": tx.regs.size(),
			}).Debug("stm::transaction::run; validation failed, rerunning")

		case errors.Is(err, ErrRetry):
			if werr := tx.waitForChange(ctx, timeout); werr != nil {
				return zero, werr
			}

		case errors.Is(err, ErrAbort), errors.Is(err, errInconsistent):
			// An alternative aborted with no enclosing Or, or a doomed read
			// set was caught early: rerun against fresh state.

		default:
			tallies.userAborts.Inc()
			return zero, err
		}
		tx.regs.clear()
	}
}
