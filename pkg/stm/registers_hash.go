//go:build hashregisters

package stm

import (
	"sort"
)

// registers is the transaction log, keyed by cell id. The hashregisters
// representation trades the ordered tree for a plain map: lookups are
// cheaper for transactions touching many cells, at the price of sorting the
// ids whenever ordered iteration is needed and of copying the whole map for
// the Or snapshot.
type registers struct {
	m map[uint64]logVar
}

func newRegisters() registers {
	return registers{m: make(map[uint64]logVar)}
}

// lookup returns the entry for c, if the transaction has touched it.
func (r registers) lookup(c *cell) (logVar, bool) {
	lv, ok := r.m[c.id]
	return lv, ok
}

// put inserts or replaces the entry for lv.c.
func (r registers) put(lv logVar) {
	r.m[lv.c.id] = lv
}

// ascend iterates over all entries in ascending cell-id order. fn returns
// false to stop early.
func (r registers) ascend(fn func(logVar) bool) {
	ids := make([]uint64, 0, len(r.m))
	for id := range r.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !fn(r.m[id]) {
			return
		}
	}
}

// size returns the transaction footprint.
func (r registers) size() int {
	return len(r.m)
}

// snapshot returns an independent copy of the log.
func (r registers) snapshot() registers {
	cp := make(map[uint64]logVar, len(r.m))
	for id, lv := range r.m {
		cp[id] = lv
	}
	return registers{m: cp}
}

// clear empties the log for the next attempt.
func (r *registers) clear() {
	*r = newRegisters()
}
