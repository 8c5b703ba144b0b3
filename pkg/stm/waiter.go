package stm

import (
	"go.uber.org/atomic"
)

// waiter is the wake-up handle a blocked transaction registers on every
// cell it read. It fires at most once; committers may signal it after the
// owner has already given up, which is then a no-op.
type waiter struct {
	fired atomic.Bool
	ch    chan struct{}
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan struct{})}
}

// notify fires the handle. Safe to call from any number of committers; only
// the first call closes the channel.
func (w *waiter) notify() {
	if w.fired.CompareAndSwap(false, true) {
		close(w.ch)
	}
}

// done exposes the firing channel for select-based waits.
func (w *waiter) done() <-chan struct{} {
	return w.ch
}
