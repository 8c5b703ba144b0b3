//go:build stm_spin

package stm

import (
	"context"
	"runtime"
	"time"
)

// spinRounds bounds how long a retrying transaction yields before simply
// running again. The spin build trades parking for latency: wake-up is
// immediate at the cost of burning scheduler slots under contention.
const spinRounds = 64

// waitForChange is the spinning stand-in for the parking implementation: it
// yields until a read cell moves on from its recorded version or the spin
// budget runs out, then lets the driver restart the transaction. The
// timeout only applies to parked waits and is ignored here.
func (tx *Tx) waitForChange(ctx context.Context, _ time.Duration) error {
	tallies.retriesParked.Inc()
	for i := 0; i < spinRounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		changed := false
		tx.regs.ascend(func(lv logVar) bool {
			if lv.blocksOn() && lv.c.version.Load() != lv.readVer {
				changed = true
				return false
			}
			return true
		})
		if changed {
			tallies.wakeups.Inc()
			return nil
		}
		runtime.Gosched()
	}
	return nil
}
