//go:build !hashregisters

package stm

import (
	"github.com/tidwall/btree"
)

// registers is the transaction log, keyed by cell id. The default
// representation is an ordered B-tree: iteration comes out in ascending id
// order for free, which is what commit-lock acquisition and wake-up
// registration need, and the copy-on-write Copy makes the Or snapshot
// cheap.
type registers struct {
	tree *btree.BTreeG[logVar]
}

func newRegisters() registers {
	return registers{
		tree: btree.NewBTreeG(func(a, b logVar) bool {
			return a.c.id < b.c.id
		}),
	}
}

// lookup returns the entry for c, if the transaction has touched it.
func (r registers) lookup(c *cell) (logVar, bool) {
	return r.tree.Get(logVar{c: c})
}

// put inserts or replaces the entry for lv.c.
func (r registers) put(lv logVar) {
	r.tree.Set(lv)
}

// ascend iterates over all entries in ascending cell-id order. fn returns
// false to stop early.
func (r registers) ascend(fn func(logVar) bool) {
	r.tree.Scan(fn)
}

// size returns the transaction footprint.
func (r registers) size() int {
	return r.tree.Len()
}

// snapshot returns an independent copy of the log. Mutations of either copy
// are invisible to the other.
func (r registers) snapshot() registers {
	return registers{tree: r.tree.Copy()}
}

// clear empties the log for the next attempt.
func (r *registers) clear() {
	*r = newRegisters()
}
