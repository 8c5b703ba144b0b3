package stm

import (
	"errors"
)

// Or combines two alternatives into one transactional action. The first
// one runs; if it succeeds or fails with a user error, that is the result.
// If it retries or aborts, the log is rolled back to the state before the
// first alternative and the second one runs in its place.
//
// When the first alternative retried, its reads stay in the log as
// wake-up-only entries: if the second retries too, the transaction blocks
// until a commit touches any dependency of either alternative.
//
// Or returns a transactional action itself, so alternatives nest.
func Or[T any](first, second func(*Tx) (T, error)) func(*Tx) (T, error) {
	return func(tx *Tx) (T, error) {
		snap := tx.regs.snapshot()

		v, err := first(tx)
		switch {
		case errors.Is(err, ErrRetry):
			abandoned := tx.regs
			tx.regs = snap

			v2, err2 := second(tx)
			if errors.Is(err2, errInconsistent) {
				return v2, err2
			}
			tx.combine(abandoned)
			return v2, err2

		case errors.Is(err, ErrAbort):
			tx.regs = snap
			return second(tx)

		default:
			// Success, user error, or inconsistency: not Or's business.
			return v, err
		}
	}
}

// Select chains any number of alternatives with Or, trying them in order.
// An empty Select blocks forever.
func Select[T any](fns ...func(*Tx) (T, error)) func(*Tx) (T, error) {
	switch len(fns) {
	case 0:
		return func(*Tx) (T, error) {
			var zero T
			return zero, ErrRetry
		}
	case 1:
		return fns[0]
	default:
		return Or(fns[0], Select(fns[1:]...))
	}
}

// Optionally runs f but turns a retry into a nil result instead of
// blocking the whole transaction. The pointer is non-nil exactly when f
// succeeded.
func Optionally[T any](f func(*Tx) (T, error)) func(*Tx) (*T, error) {
	return Or(
		func(tx *Tx) (*T, error) {
			v, err := f(tx)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
		func(*Tx) (*T, error) {
			return nil, nil
		},
	)
}

// UnwrapOrRetry returns *v, or retries the transaction when v is nil. It is
// the inverse of Optionally.
func UnwrapOrRetry[T any](v *T) (T, error) {
	if v == nil {
		var zero T
		return zero, ErrRetry
	}
	return *v, nil
}
