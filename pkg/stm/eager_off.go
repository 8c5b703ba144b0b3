//go:build !stm_eager

package stm

// eagerConflict is off by default: conflicts are found at commit-time
// validation only. Build with -tags stm_eager to fail doomed transactions
// at the first inconsistent read.
const eagerConflict = false
