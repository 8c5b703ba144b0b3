package stm

// logState classifies what a transaction has done to a cell so far. The
// state decides whether the entry is validated at commit, written back, or
// only registered for wake-up.
type logState uint8

const (
	// lvRead: the cell was read and the observed version must still hold at
	// commit time.
	lvRead logState = iota

	// lvWrite: the cell was written without a prior read. No version to
	// validate; the pending value is applied under the commit lock.
	lvWrite

	// lvReadWrite: read first, then written. Validated and applied.
	lvReadWrite

	// lvReadObsolete: the cell was read on an abandoned Or alternative. Not
	// validated and not written, but a blocked retry still registers on it
	// so that a commit to any alternative's dependency wakes the
	// transaction.
	lvReadObsolete

	// lvReadObsoleteWrite: an obsolete read that was later written through
	// the surviving alternative. Applied but not validated.
	lvReadObsoleteWrite
)

// logVar is one entry of the transaction log.
type logVar struct {
	c     *cell
	state logState

	// readVer is the cell version observed on first read. Meaningless for
	// lvWrite.
	readVer uint64

	// snapshot is the value observed on first read. Repeated reads return
	// it without touching the cell again.
	snapshot any

	// pending is the staged write, if any.
	pending any
}

// validates reports whether the entry participates in commit-time
// validation.
func (lv logVar) validates() bool {
	return lv.state == lvRead || lv.state == lvReadWrite
}

// writes reports whether the entry carries a pending write.
func (lv logVar) writes() bool {
	return lv.state == lvWrite || lv.state == lvReadWrite || lv.state == lvReadObsoleteWrite
}

// blocksOn reports whether a retrying transaction must register on the cell.
func (lv logVar) blocksOn() bool {
	return lv.state != lvWrite
}

// read returns the transaction-visible value: the staged write if one
// exists, otherwise the first-read snapshot. Touching an obsolete entry
// upgrades it back into a live one.
func (lv logVar) read() (logVar, any) {
	switch lv.state {
	case lvReadObsolete:
		lv.state = lvRead
	case lvReadObsoleteWrite:
		lv.state = lvReadWrite
	}
	if lv.writes() {
		return lv, lv.pending
	}
	return lv, lv.snapshot
}

// write stages v, preserving any read observation already made.
func (lv logVar) write(v any) logVar {
	switch lv.state {
	case lvWrite:
		// stays lvWrite
	case lvRead, lvReadWrite:
		lv.state = lvReadWrite
	case lvReadObsolete, lvReadObsoleteWrite:
		lv.state = lvReadObsoleteWrite
	}
	lv.pending = v
	return lv
}

// obsolete converts the entry into its wake-up-only form, discarding any
// staged write. Pure writes carry no read observation and are dropped
// entirely.
func (lv logVar) obsolete() (logVar, bool) {
	if lv.state == lvWrite {
		return logVar{}, false
	}
	lv.state = lvReadObsolete
	lv.pending = nil
	return lv, true
}
