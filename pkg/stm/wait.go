//go:build !stm_spin

package stm

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// waitForChange parks the transaction until a cell it read is committed to.
//
// Registration walks the read set in ascending id order; each registration
// is atomic with a recheck of the cell version, so a commit that lands
// between running the transaction and parking here is never lost: the walk
// stops and the transaction restarts at once.
//
// Returns nil to restart the transaction, ErrTimedOut when timeout is
// positive and elapsed, or ctx.Err() on cancellation.
func (tx *Tx) waitForChange(ctx context.Context, timeout time.Duration) error {
	w := newWaiter()
	registered := make([]*cell, 0, tx.regs.size())
	changed := false

	tx.regs.ascend(func(lv logVar) bool {
		if !lv.blocksOn() {
			return true
		}
		cur := lv.c.addWaiter(w)
		registered = append(registered, lv.c)
		if cur != lv.readVer {
			changed = true
			return false
		}
		return true
	})

	var err error
	if !changed {
		log.WithFields(log.Fields{
			"cells": len(registered),
		}).Debug("stm::wait::waitForChange; parking")

		tallies.retriesParked.Inc()
		err = w.block(ctx, timeout)
		if err == nil {
			tallies.wakeups.Inc()
		}
	}

	// Claim the handle so a late commit does not bother closing it, then
	// pull it off every wait list we joined.
	w.fired.Store(true)
	for _, c := range registered {
		c.removeWaiter(w)
	}
	return err
}

// block waits for the handle to fire. A non-positive timeout means wait
// indefinitely (until fired or ctx is cancelled).
func (w *waiter) block(ctx context.Context, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-w.done():
		return nil
	case <-timer:
		return ErrTimedOut
	case <-ctx.Done():
		return ctx.Err()
	}
}
