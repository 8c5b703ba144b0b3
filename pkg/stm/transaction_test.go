package stm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionSimple(t *testing.T) {
	x, err := Atomically(func(*Tx) (int, error) { return 42, nil })
	assert.Nil(t, err)
	assert.Equal(t, 42, x)
}

func TestTransactionRead(t *testing.T) {
	v := NewTVar(42)

	x, err := Atomically(func(tx *Tx) (int, error) { return v.Read(tx) })

	assert.Nil(t, err)
	assert.Equal(t, 42, x)
}

func TestTransactionWrite(t *testing.T) {
	v := NewTVar(42)

	_, err := Atomically(func(tx *Tx) (struct{}, error) {
		return struct{}{}, v.Write(tx, 0)
	})

	assert.Nil(t, err)
	assert.Equal(t, 0, v.ReadAtomic())
}

func TestTransactionCopyVar(t *testing.T) {
	src := NewTVar(42)
	dst := NewTVar(0)

	_, err := Atomically(func(tx *Tx) (struct{}, error) {
		x, err := src.Read(tx)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, dst.Write(tx, x)
	})

	assert.Nil(t, err)
	assert.Equal(t, 42, dst.ReadAtomic())
}

func TestUserErrorAbortsWithoutCommit(t *testing.T) {
	v := NewTVar(5)
	boom := errors.New("nope")

	_, err := Atomically(func(tx *Tx) (struct{}, error) {
		if werr := v.Write(tx, 99); werr != nil {
			return struct{}{}, werr
		}
		return struct{}{}, boom
	})

	assert.Equal(t, boom, err, "user errors surface unchanged")
	assert.Equal(t, 5, v.ReadAtomic(), "an aborted transaction must not commit")
}

func TestPanicAbortsWithoutCommit(t *testing.T) {
	v := NewTVar(5)

	require.Panics(t, func() {
		_, _ = Atomically(func(tx *Tx) (struct{}, error) {
			if err := v.Write(tx, 99); err != nil {
				return struct{}{}, err
			}
			panic("user panic")
		})
	})

	assert.Equal(t, 5, v.ReadAtomic(), "a panicking transaction must not commit")

	// The goroutine must be usable for transactions again afterwards.
	x, err := Atomically(func(tx *Tx) (int, error) { return v.Read(tx) })
	assert.Nil(t, err)
	assert.Equal(t, 5, x)
}

func TestNestedAtomicallyPanics(t *testing.T) {
	v := NewTVar(5)

	require.Panics(t, func() {
		_, _ = Atomically(func(tx *Tx) (struct{}, error) {
			if err := v.Write(tx, 99); err != nil {
				return struct{}{}, err
			}
			_, _ = Atomically(func(*Tx) (int, error) { return 0, nil })
			return struct{}{}, nil
		})
	})

	assert.Equal(t, 5, v.ReadAtomic(), "the outer transaction is dropped with no effect")
}

// A transaction whose read set changes while it is still running must be
// rerun, not commit stale data.
func TestReadWriteInterference(t *testing.T) {
	v := NewTVar(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Atomically(func(tx *Tx) (struct{}, error) {
			x, err := v.Read(tx)
			if err != nil {
				return struct{}{}, err
			}
			// Leave the window open for the main goroutine to commit.
			time.Sleep(200 * time.Millisecond)
			return struct{}{}, v.Write(tx, x+10)
		})
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := Atomically(func(tx *Tx) (struct{}, error) {
		return struct{}{}, v.Write(tx, 32)
	})
	require.Nil(t, err)

	wg.Wait()
	assert.Equal(t, 42, v.ReadAtomic())
}

func TestCommitVersionsStrictlyIncrease(t *testing.T) {
	v := NewTVar(0)

	prev := v.c.version.Load()
	for i := 0; i < 10; i++ {
		_, err := Atomically(func(tx *Tx) (struct{}, error) {
			return struct{}{}, v.Modify(tx, func(n int) int { return n + 1 })
		})
		require.Nil(t, err)

		cur := v.c.version.Load()
		assert.Greater(t, cur, prev, "every mutating commit stamps a larger version")
		prev = cur
	}
}

func TestReadOnlyTransactionLeavesVersionAlone(t *testing.T) {
	v := NewTVar(42)
	before := v.c.version.Load()

	_, err := Atomically(func(tx *Tx) (int, error) { return v.Read(tx) })

	assert.Nil(t, err)
	assert.Equal(t, before, v.c.version.Load())
}

// 8 workers, 10000 increments each, nothing lost.
func TestNoLostUpdates(t *testing.T) {
	const workers = 8
	const iterations = 10000

	counter := NewTVar(0)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_, err := Atomically(func(tx *Tx) (struct{}, error) {
					return struct{}{}, counter.Modify(tx, func(n int) int { return n + 1 })
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter.ReadAtomic())
}

// Concurrent opposing transfers preserve the combined balance, and no
// reader ever observes a torn intermediate state.
func TestTransferPreservesSum(t *testing.T) {
	a := NewTVar(100)
	b := NewTVar(0)

	transfer := func(from, to *TVar[int]) func(tx *Tx) (struct{}, error) {
		return func(tx *Tx) (struct{}, error) {
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
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				var err error
				if worker%2 == 0 {
					_, err = Atomically(transfer(a, b))
				} else {
					_, err = Atomically(transfer(b, a))
				}
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}

	// Opacity probe: every consistent snapshot sums to 100.
	probeDone := make(chan struct{})
	go func() {
		defer close(probeDone)
		for i := 0; i < 200; i++ {
			sum, err := Atomically(func(tx *Tx) (int, error) {
				x, err := a.Read(tx)
				if err != nil {
					return 0, err
				}
				y, err := b.Read(tx)
				if err != nil {
					return 0, err
				}
				return x + y, nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			if sum != 100 {
				t.Errorf("torn read: observed sum %d", sum)
				return
			}
		}
	}()

	wg.Wait()
	<-probeDone
	assert.Equal(t, 100, a.ReadAtomic()+b.ReadAtomic())
}

func TestAtomicallyCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewTVar(0)
	_, err := AtomicallyCtx(ctx, func(tx *Tx) (int, error) { return v.Read(tx) })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAtomicallyCtxCancelUnblocksRetry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	v := NewTVar(0)
	_, err := AtomicallyCtx(ctx, func(tx *Tx) (int, error) {
		x, rerr := v.Read(tx)
		if rerr != nil {
			return 0, rerr
		}
		if x == 0 {
			return 0, Retry()
		}
		return x, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func BenchmarkAtomicallyIncrement(b *testing.B) {
	v := NewTVar(0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Atomically(func(tx *Tx) (struct{}, error) {
			return struct{}{}, v.Modify(tx, func(n int) int { return n + 1 })
		})
	}
}

func BenchmarkReadAtomic(b *testing.B) {
	v := NewTVar(0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = v.ReadAtomic()
	}
}
