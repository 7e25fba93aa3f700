package dbx

import "context"

// Outcome is the tagged result of a unit of work: either Committed with a
// value or Aborted with a reason.
type Outcome[T any] struct {
	value     T
	reason    error
	committed bool
}

func Committed[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, committed: true}
}

func Aborted[T any](reason error) Outcome[T] {
	if reason == nil {
		reason = dbxErrors.New(ErrAborted)
	}
	return Outcome[T]{reason: reason}
}

func (o Outcome[T]) IsCommitted() bool { return o.committed }
func (o Outcome[T]) Value() T          { return o.value }
func (o Outcome[T]) Reason() error     { return o.reason }

// Result flattens the outcome into the usual (value, error) pair.
func (o Outcome[T]) Result() (T, error) {
	if !o.committed {
		var zero T
		return zero, o.reason
	}
	return o.value, nil
}

// Atomically runs fn inside uow. An Aborted outcome or a non-nil error rolls
// every write back; only a Committed outcome is committed.
func Atomically[R, T any](ctx context.Context, uow UnitOfWork[R], fn func(ctx context.Context, repos R) Outcome[T]) Outcome[T] {
	var out Outcome[T]
	err := uow.Transact(ctx, func(ctx context.Context, repos R) error {
		out = fn(ctx, repos)
		if !out.committed {
			return out.reason
		}
		return nil
	})
	// err is set for aborts and for a failed commit alike
	if err != nil {
		return Aborted[T](err)
	}
	return out
}
