package stream

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Flow is a reusable Source[I] -> Source[O] stage.
type Flow[I, O any] struct {
	via func(*Source[I]) *Source[O]
}

// NewFlow builds a Flow from a source transformation.
func NewFlow[I, O any](fn func(*Source[I]) *Source[O]) Flow[I, O] {
	return Flow[I, O]{via: fn}
}

// Via attaches flow to src.
func Via[I, O any](src *Source[I], flow Flow[I, O]) *Source[O] {
	return flow.via(src)
}

// FailedFlow returns a flow that fails with err on first pull. Closing it
// still closes the upstream iterator.
func FailedFlow[I, O any](err error) Flow[I, O] {
	return NewFlow(func(src *Source[I]) *Source[O] {
		return &Source[O]{
			create: func(ctx context.Context) Iterator[O] {
				return &failedIter[O]{err: err, closer: src.create(ctx).Close}
			},
		}
	})
}

// MapFlow is the Flow form of Map.
func MapFlow[I, O any](fn func(context.Context, I) (O, error)) Flow[I, O] {
	return NewFlow(func(src *Source[I]) *Source[O] { return Map(src, fn) })
}

// MapAsyncFlow is the Flow form of MapAsync.
func MapAsyncFlow[I, O any](parallelism int, fn func(context.Context, I) (O, error)) Flow[I, O] {
	return NewFlow(func(src *Source[I]) *Source[O] { return MapAsync(src, parallelism, fn) })
}

// Map transforms each value with fn, synchronously, on the pulling goroutine.
func Map[I, O any](src *Source[I], fn func(context.Context, I) (O, error)) *Source[O] {
	return &Source[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: src.create(ctx), fn: fn}
		},
	}
}

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

// MapAsync applies fn to up to parallelism values concurrently and yields
// the results in input order.
//
// At most parallelism calls are in flight at any time: a slot is freed only
// once its result has been handed to the consumer, so parallelism 1 is
// strictly sequential. The first error (in input order) ends the stream:
// nothing further is dispatched, and calls already in flight see their
// context cancelled and their results are dropped. parallelism values below
// 1 are treated as 1.
func MapAsync[I, O any](src *Source[I], parallelism int, fn func(context.Context, I) (O, error)) *Source[O] {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Source[O]{
		create: func(ctx context.Context) Iterator[O] {
			runCtx, cancel := context.WithCancel(ctx)
			it := &asyncIter[I, O]{
				fn:      fn,
				sem:     semaphore.NewWeighted(int64(parallelism)),
				pending: make(chan chan result[O], parallelism),
				cancel:  cancel,
			}
			it.wg.Add(1)
			go it.dispatch(runCtx, src.create(runCtx))
			return it
		},
	}
}

type asyncIter[I, O any] struct {
	fn      func(context.Context, I) (O, error)
	sem     *semaphore.Weighted
	pending chan chan result[O]
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	current   chan result[O]
	stopErr   error // why dispatch stopped early, if it did
	err       error
	done      bool
	closeOnce sync.Once
}

// dispatch pulls from source and starts one worker per value, queueing the
// workers' result slots in input order. It owns source and closes it.
func (it *asyncIter[I, O]) dispatch(ctx context.Context, source Iterator[I]) {
	defer it.wg.Done()
	defer close(it.pending)
	defer source.Close()

	for {
		if err := it.sem.Acquire(ctx, 1); err != nil {
			it.stopErr = err
			return
		}

		val, ok, err := source.Next(ctx)
		if err != nil {
			// The failure takes the acquired slot; the consumer releases it.
			slot := make(chan result[O], 1)
			slot <- result[O]{err: err}
			select {
			case it.pending <- slot:
			case <-ctx.Done():
				it.sem.Release(1)
				it.stopErr = ctx.Err()
			}
			return
		}
		if !ok {
			it.sem.Release(1)
			return
		}

		slot := make(chan result[O], 1)
		select {
		case it.pending <- slot:
		case <-ctx.Done():
			it.sem.Release(1)
			it.stopErr = ctx.Err()
			return
		}

		it.wg.Add(1)
		go func(val I) {
			defer it.wg.Done()
			out, err := it.fn(ctx, val)
			slot <- result[O]{val: out, ok: err == nil, err: err}
		}(val)
	}
}

func (it *asyncIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	if it.err != nil {
		return zero, false, it.err
	}
	if it.done {
		return zero, false, nil
	}

	// current survives a cancelled wait so order is kept on the next call.
	if it.current == nil {
		select {
		case s, open := <-it.pending:
			if !open {
				// stopErr is written before pending is closed.
				if it.stopErr != nil {
					it.err = it.stopErr
					return zero, false, it.err
				}
				it.done = true
				return zero, false, nil
			}
			it.current = s
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}

	select {
	case r := <-it.current:
		it.current = nil
		if r.err != nil {
			// Cancel before freeing the slot so dispatch cannot start another call.
			it.err = r.err
			it.cancel()
			it.sem.Release(1)
			return zero, false, r.err
		}
		it.sem.Release(1)
		return r.val, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Close stops dispatching, cancels in-flight calls through their context
// and waits for every goroutine started by this iterator to return.
func (it *asyncIter[I, O]) Close() error {
	it.closeOnce.Do(func() {
		it.cancel()
		it.wg.Wait()
	})
	return nil
}
