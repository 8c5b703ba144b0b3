package test

import (
	"time"
)

// Terminates runs f in its own goroutine and reports whether it returned
// within the given number of milliseconds. Used to check both that blocking
// operations block and that wake-ups arrive in bounded time.
//
// The goroutine leaks if f never returns; callers only use this with
// functions that are expected to either finish or block forever.
func Terminates(timeoutMs int, f func()) bool {
	done := make(chan struct{})
	go func() {
		f()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return false
	}
}

// RunWithSide runs main in its own goroutine while side runs on the caller.
// It returns main's result and whether it finished within timeoutMs. The
// typical use is a transaction that blocks in retry as main and the commit
// that should wake it as side.
func RunWithSide[T any](timeoutMs int, main func() T, side func()) (T, bool) {
	result := make(chan T, 1)
	go func() {
		result <- main()
	}()
	side()
	select {
	case v := <-result:
		return v, true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		var zero T
		return zero, false
	}
}
