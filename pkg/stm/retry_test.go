package stm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltpond/stm/test"
)

func TestInfiniteRetryBlocks(t *testing.T) {
	terminated := test.Terminates(300, func() {
		_, _ = Atomically(func(*Tx) (int, error) { return 0, Retry() })
	})
	assert.False(t, terminated, "a retry with an empty read set never wakes")
}

// A reader blocks until another goroutine commits a nonzero value, then
// returns it promptly.
func TestRetryWokenByCommit(t *testing.T) {
	v := NewTVar(0)

	x, finished := test.RunWithSide(800,
		func() int {
			got, err := Atomically(func(tx *Tx) (int, error) {
				x, rerr := v.Read(tx)
				if rerr != nil {
					return 0, rerr
				}
				if x == 0 {
					return 0, Retry()
				}
				return x, nil
			})
			require.Nil(t, err)
			return got
		},
		func() {
			time.Sleep(50 * time.Millisecond)
			_, err := Atomically(func(tx *Tx) (struct{}, error) {
				return struct{}{}, v.Write(tx, 7)
			})
			require.Nil(t, err)
		},
	)

	require.True(t, finished, "blocked reader was not woken in time")
	assert.Equal(t, 7, x)
}

func TestRetryWokenBySetAtomic(t *testing.T) {
	v := NewTVar(0)

	x, finished := test.RunWithSide(800,
		func() int {
			got, err := Atomically(func(tx *Tx) (int, error) {
				x, rerr := v.Read(tx)
				if rerr != nil {
					return 0, rerr
				}
				if x == 0 {
					return 0, Retry()
				}
				return x, nil
			})
			require.Nil(t, err)
			return got
		},
		func() {
			time.Sleep(50 * time.Millisecond)
			v.SetAtomic(42)
		},
	)

	require.True(t, finished)
	assert.Equal(t, 42, x)
}

// A commit that lands between running the transaction and parking must not
// be lost: registration double-checks the version.
func TestWakeupNotLostUnderChurn(t *testing.T) {
	v := NewTVar(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			v.SetAtomic(i)
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 20; i++ {
		terminated := test.Terminates(2000, func() {
			_, err := Atomically(func(tx *Tx) (int, error) {
				x, rerr := v.Read(tx)
				if rerr != nil {
					return 0, rerr
				}
				if x < 10 {
					return 0, Retry()
				}
				return x, nil
			})
			require.Nil(t, err)
		})
		require.True(t, terminated, "reader %d missed its wake-up", i)
	}
	wg.Wait()
}

func TestAtomicallyTimeout(t *testing.T) {
	v := NewTVar(0)

	start := time.Now()
	_, err := AtomicallyTimeout(func(tx *Tx) (int, error) {
		x, rerr := v.Read(tx)
		if rerr != nil {
			return 0, rerr
		}
		if x == 0 {
			return 0, Retry()
		}
		return x, nil
	}, 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrTimedOut)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAtomicallyTimeoutUnusedOnSuccess(t *testing.T) {
	v := NewTVar(42)

	x, err := AtomicallyTimeout(func(tx *Tx) (int, error) {
		return v.Read(tx)
	}, time.Millisecond)

	assert.Nil(t, err)
	assert.Equal(t, 42, x)
}

func TestWaiterUnregisteredAfterWake(t *testing.T) {
	v := NewTVar(0)

	_, finished := test.RunWithSide(800,
		func() int {
			got, err := Atomically(func(tx *Tx) (int, error) {
				x, rerr := v.Read(tx)
				if rerr != nil {
					return 0, rerr
				}
				if x == 0 {
					return 0, Retry()
				}
				return x, nil
			})
			require.Nil(t, err)
			return got
		},
		func() {
			time.Sleep(50 * time.Millisecond)
			v.SetAtomic(1)
		},
	)
	require.True(t, finished)

	// Allow the woken transaction to finish unregistering.
	time.Sleep(50 * time.Millisecond)
	v.c.mu.Lock()
	left := len(v.c.waiters)
	v.c.mu.Unlock()
	assert.Zero(t, left, "wait lists must not accumulate dead handles")
}
