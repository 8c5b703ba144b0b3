/*
Package stm provides composable software transactional memory.

Shared state lives in transactional variables (TVar). A transaction runs a
user function against a private read/write log and never touches the shared
cells directly; on success the log is validated against the current cell
versions and committed under short per-cell locks, otherwise the function is
rerun from scratch. Two transactional actions compose into a larger one with
the same atomicity guarantees, which is the main advantage over locking.

	counter := stm.NewTVar(0)

	stm.Atomically(func(tx *stm.Tx) (int, error) {
		n, err := counter.Read(tx)
		if err != nil {
			return 0, err
		}
		return n + 1, counter.Write(tx, n+1)
	})

A transaction can block until the state it observed changes by returning
stm.Retry(). Alternatives are expressed with Or: if the first action retries,
the second one runs, and if both retry the transaction blocks until any
variable read by either alternative is committed to.

	recv := stm.Or(takeFrom(a), takeFrom(b))

Transaction functions must be free of side effects other than TVar access,
since they may run several times before committing. Values stored in TVars
are shared between goroutines once committed and must be treated as
immutable; store a fresh value instead of mutating in place.

Calling Atomically from inside a running transaction on the same goroutine
is a programmer error and panics. Returning an ordinary error from the
transaction function aborts it without committing and surfaces the error to
the caller unchanged.
*/
package stm
