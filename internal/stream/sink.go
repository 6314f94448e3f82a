package stream

import (
	"context"
	"errors"
)

// Sink is a terminal stage. consume takes ownership of the iterator and
// must close it before returning.
type Sink[T any] struct {
	consume func(ctx context.Context, iter Iterator[T]) error
}

// NewSink builds a Sink from a consume function that owns iter.
func NewSink[T any](consume func(ctx context.Context, iter Iterator[T]) error) Sink[T] {
	return Sink[T]{consume: consume}
}

// ForEach returns a sink that calls fn for every value until the source is
// exhausted or fn fails.
func ForEach[T any](fn func(context.Context, T) error) Sink[T] {
	return NewSink(func(ctx context.Context, iter Iterator[T]) (err error) {
		defer func() {
			err = errors.Join(err, iter.Close())
		}()
		for {
			val, ok, err := iter.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := fn(ctx, val); err != nil {
				return err
			}
		}
	})
}

// Ignore returns a sink that drains the source and discards every value.
func Ignore[T any]() Sink[T] {
	return ForEach(func(context.Context, T) error { return nil })
}

// Fold returns a sink that accumulates values into *acc with fn.
// *acc is only meaningful once the run completed without error.
func Fold[T, R any](acc *R, fn func(R, T) R) Sink[T] {
	return ForEach(func(_ context.Context, v T) error {
		*acc = fn(*acc, v)
		return nil
	})
}

// To prepends flow to sink, producing a sink of the flow's input type.
func To[I, O any](flow Flow[I, O], sink Sink[O]) Sink[I] {
	return NewSink(func(ctx context.Context, iter Iterator[I]) error {
		return sink.consume(ctx, Via(FromIterator(iter), flow).create(ctx))
	})
}

// Run pulls src into sink on the calling goroutine and returns the outcome.
func Run[T any](ctx context.Context, src *Source[T], sink Sink[T]) error {
	return sink.consume(ctx, src.create(ctx))
}

// RunWith runs src into sink on a new goroutine and returns a Future that
// completes with the outcome. Cancel ctx to stop the run.
func RunWith[T any](ctx context.Context, src *Source[T], sink Sink[T]) *Future {
	f := NewFuture()
	go func() {
		f.Complete(Run(ctx, src, sink))
	}()
	return f
}
