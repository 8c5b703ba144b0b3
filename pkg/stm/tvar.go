package stm

import (
	"sync"

	"go.uber.org/atomic"
)

// cell is the shared, untyped inside of a TVar. Transactions across any
// number of goroutines reference the same cell; the typed TVar wrapper only
// exists to keep the user-facing API safe.
type cell struct {
	// id orders commit-lock acquisition and keys the transaction log.
	id uint64

	// mu is the commit lock. It guards value and waiters and is held only
	// for the short commit and consistent-read critical sections.
	mu sync.Mutex

	// value is the current committed value. Guarded by mu.
	value any

	// version is the commit version of value. It is written under mu and
	// published atomically so validation can compare versions without
	// taking the lock.
	version atomic.Uint64

	// waiters holds the wake-up handles of transactions blocked in retry.
	// Guarded by mu. A mutating commit drains the list.
	waiters []*waiter
}

func newCell(v any) *cell {
	return &cell{
		id:    nextCellID(),
		value: v,
	}
}

// load copies (value, version) under the commit lock, so the pair is one
// that existed simultaneously.
func (c *cell) load() (any, uint64) {
	c.mu.Lock()
	v, ver := c.value, c.version.Load()
	c.mu.Unlock()
	return v, ver
}

// store publishes v as a one-off commit: new clock version, waiters woken.
func (c *cell) store(v any) {
	c.mu.Lock()
	c.value = v
	c.version.Store(clock.Inc())
	ws := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range ws {
		w.notify()
	}
}

// addWaiter registers w and returns the cell version at registration time.
// The caller compares it against its recorded read version; without that
// recheck a commit landing between validation and parking would be lost.
func (c *cell) addWaiter(w *waiter) uint64 {
	c.mu.Lock()
	c.waiters = append(c.waiters, w)
	ver := c.version.Load()
	c.mu.Unlock()
	return ver
}

// removeWaiter drops w from the wait list. A no-op when a commit already
// drained the list.
func (c *cell) removeWaiter(w *waiter) {
	c.mu.Lock()
	for i, x := range c.waiters {
		if x == w {
			last := len(c.waiters) - 1
			c.waiters[i] = c.waiters[last]
			c.waiters[last] = nil
			c.waiters = c.waiters[:last]
			break
		}
	}
	c.mu.Unlock()
}

// A TVar is a transactional variable holding a value of type T. TVars are
// cheap to share: copies refer to the same underlying cell, and the cell is
// reclaimed by the garbage collector when the last reference drops.
//
// Values stored in a TVar are shared across goroutines once committed and
// must be treated as immutable.
type TVar[T any] struct {
	c *cell
}

// NewTVar returns a fresh TVar with a unique identity, holding v at
// version 0.
func NewTVar[T any](v T) *TVar[T] {
	return &TVar[T]{c: newCell(v)}
}

// Read returns the value of the variable as seen by the transaction: a
// pending write if one was staged, the first-read snapshot on repeated
// reads, otherwise the current committed value.
func (tv *TVar[T]) Read(tx *Tx) (T, error) {
	v, err := tx.readCell(tv.c)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Write stages v in the transaction log. The shared cell itself is not
// touched until commit.
func (tv *TVar[T]) Write(tx *Tx, v T) error {
	return tx.writeCell(tv.c, v)
}

// Modify replaces the value with f applied to it.
func (tv *TVar[T]) Modify(tx *Tx, f func(T) T) error {
	old, err := tv.Read(tx)
	if err != nil {
		return err
	}
	return tv.Write(tx, f(old))
}

// Replace stages v and returns the previous value.
func (tv *TVar[T]) Replace(tx *Tx, v T) (T, error) {
	old, err := tv.Read(tx)
	if err != nil {
		var zero T
		return zero, err
	}
	return old, tv.Write(tx, v)
}

// ReadAtomic reads the current committed value without a transaction. It is
// equivalent to running a single-read transaction, but cheaper.
func (tv *TVar[T]) ReadAtomic() T {
	v, _ := tv.c.load()
	return v.(T)
}

// SetAtomic publishes v without a transaction: the variable gets a fresh
// commit version and blocked readers are woken. Equivalent to a single-write
// transaction.
func (tv *TVar[T]) SetAtomic(v T) {
	tv.c.store(v)
}
