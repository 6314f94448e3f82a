package stream

import "context"

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Source is a lazy, re-runnable recipe for an Iterator.
// No work happens until Iter is called or the source is run into a Sink.
type Source[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Iter materialises the source. The caller must Close the iterator.
func (s *Source[T]) Iter(ctx context.Context) Iterator[T] {
	return s.create(ctx)
}

// result carries a value or error through a channel.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// --- Constructors ---

// FromFunc creates a source from a factory that produces an Iterator.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Source[T] {
	return &Source[T]{create: fn}
}

// FromIterator wraps an existing iterator. The resulting source can be run once.
func FromIterator[T any](iter Iterator[T]) *Source[T] {
	return &Source[T]{
		create: func(_ context.Context) Iterator[T] {
			return iter
		},
	}
}

// FromSlice creates a source that yields items in order.
func FromSlice[T any](items []T) *Source[T] {
	return &Source[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// Failed creates a source whose first pull fails with err.
func Failed[T any](err error) *Source[T] {
	return &Source[T]{
		create: func(_ context.Context) Iterator[T] {
			return &failedIter[T]{err: err}
		},
	}
}

// --- Terminals ---

// Collect runs the source and returns all values as a slice.
// On error it returns the values received before the failure.
func Collect[T any](ctx context.Context, s *Source[T]) ([]T, error) {
	iter := s.create(ctx)
	defer iter.Close()
	var out []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if it.index >= len(it.items) {
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type failedIter[T any] struct {
	err    error
	closer func() error
}

func (it *failedIter[T]) Next(_ context.Context) (T, bool, error) {
	var zero T
	return zero, false, it.err
}

func (it *failedIter[T]) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}
