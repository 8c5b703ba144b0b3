//go:build stm_eager

package stm

// eagerConflict enables early conflict detection: every read revalidates
// the accumulated read set and fails the attempt as soon as any read cell
// has advanced, instead of finishing a doomed transaction function.
const eagerConflict = true
