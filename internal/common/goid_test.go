package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineIDStableWithinGoroutine(t *testing.T) {
	assert.Equal(t, GoroutineID(), GoroutineID())
}

func TestGoroutineIDDiffersAcrossGoroutines(t *testing.T) {
	mine := GoroutineID()

	var theirs uint64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		theirs = GoroutineID()
	}()
	wg.Wait()

	assert.NotEqual(t, mine, theirs)
}
