package stream

import (
	"context"
	"sync"
)

// Future is the one-shot completion signal of an asynchronous run.
// It completes exactly once, with nil on success or the terminal error.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewFuture returns an incomplete Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a Future already completed with err.
func Completed(err error) *Future {
	f := NewFuture()
	f.Complete(err)
	return f
}

// Complete resolves the future. Only the first call has an effect.
func (f *Future) Complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed when the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the outcome once Done is closed. Like context.Context.Err, it
// returns nil while the future is pending, so nil means success only after
// Done is closed; use Wait to block for the outcome.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete relays the outcome to fn once the future completes.
// fn runs on its own goroutine.
func (f *Future) OnComplete(fn func(error)) {
	go func() {
		<-f.done
		fn(f.err)
	}()
}
