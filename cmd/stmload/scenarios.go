package main

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/meltpond/stm/pkg/common"
	"github.com/meltpond/stm/pkg/stm"
)

// runScenario dispatches the configured workload and reports wall time and
// engine tallies.
func runScenario(conf *common.LoadConfig) {
	log.WithFields(log.Fields{
		"scenario":   conf.Scenario,
		"workers":    conf.Workers,
		"iterations": conf.Iterations,
		"durationMs": conf.DurationMs,
	}).Info("stmload::scenarios::runScenario; starting workload")

	stm.ResetTallies()
	start := time.Now()

	switch conf.Scenario {
	case common.ScenarioCounter:
		runCounter(conf)
	case common.ScenarioTransfer:
		runTransfer(conf)
	case common.ScenarioPingPong:
		runPingPong(conf)
	}

	elapsed := time.Since(start)
	t := stm.Tallies()
	log.WithFields(log.Fields{
		"elapsed":    elapsed.String(),
		"commits":    t.Commits,
		"conflicts":  t.Conflicts,
		"parked":     t.RetriesParked,
		"wakeups":    t.Wakeups,
		"commitRate": float64(t.Commits) / elapsed.Seconds(),
	}).Info("stmload::scenarios::runScenario; workload done")
}

// forEachWorker runs the worker body on conf.Workers goroutines. Each
// worker calls body until the configured iteration count is reached, the
// duration window closes, or body returns false.
func forEachWorker(conf *common.LoadConfig, body func(worker, iter int) bool) {
	stop := &common.ProtectedBool{}
	if conf.DurationMs > 0 {
		timer := time.AfterFunc(time.Duration(conf.DurationMs)*time.Millisecond, func() {
			stop.Set(true)
		})
		defer timer.Stop()
	}

	var wg sync.WaitGroup
	for w := 0; w < conf.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; ; i++ {
				if conf.DurationMs > 0 {
					if stop.Get() {
						return
					}
				} else if i >= conf.Iterations {
					return
				}
				if !body(worker, i) {
					return
				}
			}
		}(w)
	}
	wg.Wait()
}

// runCounter has every worker increment one shared counter.
func runCounter(conf *common.LoadConfig) {
	counter := stm.NewTVar(0)

	forEachWorker(conf, func(int, int) bool {
		_, err := stm.Atomically(func(tx *stm.Tx) (int, error) {
			n, err := counter.Read(tx)
			if err != nil {
				return 0, err
			}
			return n + 1, counter.Write(tx, n+1)
		})
		return err == nil
	})

	final := counter.ReadAtomic()
	log.WithFields(log.Fields{"final": final}).Info("stmload::scenarios::runCounter; done")
	if conf.DurationMs == 0 && final != conf.Workers*conf.Iterations {
		log.WithFields(log.Fields{
			"expected": conf.Workers * conf.Iterations,
			"actual":   final,
		}).Error("stmload::scenarios::runCounter; lost updates detected")
	}
}

// runTransfer shuffles money between accounts; the invariant is that the
// total stays constant no matter how the transfers interleave.
func runTransfer(conf *common.LoadConfig) {
	const initialBalance = 100

	accounts := make([]*stm.TVar[int], conf.Accounts)
	for i := range accounts {
		accounts[i] = stm.NewTVar(initialBalance)
	}

	forEachWorker(conf, func(int, int) bool {
		from := accounts[rand.Intn(len(accounts))]
		to := accounts[rand.Intn(len(accounts))]

		_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
			balance, err := from.Read(tx)
			if err != nil {
				return struct{}{}, err
			}
			if balance == 0 {
				return struct{}{}, nil
			}
			if err := from.Write(tx, balance-1); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, to.Modify(tx, func(n int) int { return n + 1 })
		})
		return err == nil
	})

	total := 0
	for _, acct := range accounts {
		total += acct.ReadAtomic()
	}
	log.WithFields(log.Fields{"total": total}).Info("stmload::scenarios::runTransfer; done")
	if total != conf.Accounts*initialBalance {
		log.WithFields(log.Fields{
			"expected": conf.Accounts * initialBalance,
			"actual":   total,
		}).Error("stmload::scenarios::runTransfer; sum invariant violated")
	}
}

// runPingPong partitions workers into two teams that take turns flipping a
// shared token, blocking in retry while the other team holds it. This
// exercises the park/wake path rather than commit throughput.
func runPingPong(conf *common.LoadConfig) {
	token := stm.NewTVar(0)
	timeout := time.Duration(conf.RetryTimeoutMs) * time.Millisecond

	forEachWorker(conf, func(worker, _ int) bool {
		team := worker % 2
		flip := func(tx *stm.Tx) (int, error) {
			t, err := token.Read(tx)
			if err != nil {
				return 0, err
			}
			if t%2 != team {
				return 0, stm.Retry()
			}
			return t, token.Write(tx, t+1)
		}

		var err error
		if timeout > 0 {
			_, err = stm.AtomicallyTimeout(flip, timeout)
			if errors.Is(err, stm.ErrTimedOut) {
				// The other team drained its iterations first; nothing left
				// to rally against.
				return false
			}
		} else {
			_, err = stm.Atomically(flip)
		}
		return err == nil
	})

	log.WithFields(log.Fields{
		"rallies": token.ReadAtomic(),
	}).Info("stmload::scenarios::runPingPong; done")
}
