package stream

import "context"

// Batch groups consecutive values into slices of up to size values. The
// last batch may be shorter. size below 1 is treated as 1.
//
// When the source fails mid-batch the partial batch is emitted first and
// the error surfaces on the following pull.
func Batch[T any](src *Source[T], size int) *Source[[]T] {
	if size < 1 {
		size = 1
	}
	return &Source[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			return &batchIter[T]{source: src.create(ctx), size: size}
		},
	}
}

// BatchFlow is the Flow form of Batch.
func BatchFlow[T any](size int) Flow[T, []T] {
	return NewFlow(func(src *Source[T]) *Source[[]T] { return Batch(src, size) })
}

type batchIter[T any] struct {
	source Iterator[T]
	size   int
	err    error
	done   bool
}

func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.err != nil {
		return nil, false, it.err
	}
	if it.done {
		return nil, false, nil
	}

	batch := make([]T, 0, it.size)
	for len(batch) < it.size {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			it.err = err
			break
		}
		if !ok {
			it.done = true
			break
		}
		batch = append(batch, val)
	}

	if len(batch) > 0 {
		return batch, true, nil
	}
	return nil, false, it.err
}

func (it *batchIter[T]) Close() error { return it.source.Close() }
