// Package stream is a small lazy, pull-based streaming engine: sources,
// flows and sinks over an Iterator.
//
// Nothing runs until a Source is pulled, either directly through Iter or by
// running it into a Sink. Each stage pulls from the previous one on demand,
// which gives backpressure without explicit flow control.
//
// # Building blocks
//
//   - Source[T]: a recipe for an Iterator[T] (FromSlice, FromFunc, FromIterator, Failed)
//   - Flow[I, O]: a Source[I] -> Source[O] transformation (NewFlow, MapFlow, MapAsyncFlow)
//   - Sink[T]: a terminal consumer that owns and closes the iterator (ForEach, Ignore, To)
//   - Future: one-shot completion of an asynchronous run (RunWith)
//
// # Concurrency
//
// Map is synchronous. MapAsync runs up to n calls concurrently and still
// yields results in input order. Closing the iterator, or cancelling the
// context it was created with, stops further dispatch and waits for the
// in-flight calls to return.
//
// # Usage
//
//	src := stream.FromSlice([]string{"a", "b"})
//	upper := stream.Map(src, func(_ context.Context, s string) (string, error) {
//	    return strings.ToUpper(s), nil
//	})
//	err := stream.RunWith(ctx, upper, stream.ForEach(print)).Wait(ctx)
package stream
