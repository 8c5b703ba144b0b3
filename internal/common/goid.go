package common

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// GoroutineID returns the runtime id of the calling goroutine.
//
// The runtime does not expose goroutine identity on purpose, but the first
// line of a stack dump starts with "goroutine <id> [state]:" and that format
// has been stable across Go releases. The id is used to reject a nested
// top-level transaction on the same goroutine; it must never be used to key
// behavior across goroutines.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("common: malformed goroutine header in stack dump")
	}
	return id
}
