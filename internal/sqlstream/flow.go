package sqlstream

import (
	"context"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/stream"
)

// Flow executes the statement fn derives from each element and emits the
// affected row count, in input order.
//
// With WithParallelism(n) up to n statements run concurrently; the default
// of 1 runs them strictly one after another. The first failure, whether from
// fn or from the session, ends the flow.
func Flow[T any](session database.Session, fn func(T) (string, error), opts ...Option) stream.Flow[T, int64] {
	return FlowWithPassThrough(session, fn, func(_ T, n int64) (int64, error) {
		return n, nil
	}, opts...)
}

// FlowWithPassThrough is Flow, but emits combine(element, count) so the
// element travels downstream together with its result.
func FlowWithPassThrough[T, R any](
	session database.Session,
	fn func(T) (string, error),
	combine func(T, int64) (R, error),
	opts ...Option,
) stream.Flow[T, R] {
	o, err := buildOptions(opts)
	if err == nil {
		err = checkArgs(session, fn != nil && combine != nil)
	}
	if err != nil {
		return stream.FailedFlow[T, R](err)
	}

	exec := func(ctx context.Context, elem T) (R, error) {
		var zero R
		sql, err := fn(elem)
		if err != nil {
			o.log.ErrorWith("statement function failed", err, nil)
			return zero, err
		}
		o.log.DebugWith("executing statement", map[string]any{"sql": o.log.SQL(sql)})
		n, err := session.Exec(ctx, sql)
		if err != nil {
			o.log.ErrorWith("statement failed", err, map[string]any{"sql": o.log.SQL(sql)})
			return zero, err
		}
		return combine(elem, n)
	}

	return stream.MapAsyncFlow(o.parallelism, exec)
}

// Sink executes the statement fn derives from each element and discards the
// counts. Running a source into it yields one completion: nil once every
// element was consumed and every statement finished, or the first error.
func Sink[T any](session database.Session, fn func(T) (string, error), opts ...Option) stream.Sink[T] {
	return stream.To(Flow(session, fn, opts...), stream.Ignore[int64]())
}

// StatementSink is Sink for elements that already are complete statements.
func StatementSink(session database.Session, opts ...Option) stream.Sink[string] {
	return Sink(session, func(sql string) (string, error) {
		return sql, nil
	}, opts...)
}

// ExecuteAll runs statements through StatementSink asynchronously and
// returns its completion.
func ExecuteAll(ctx context.Context, session database.Session, statements *stream.Source[string], opts ...Option) *stream.Future {
	return stream.RunWith(ctx, statements, StatementSink(session, opts...))
}

// Totals summarises a finished statement run.
type Totals struct {
	Statements   int64
	RowsAffected int64
}

// Execute runs statements on the calling goroutine and totals how many ran
// and how many rows they affected. On failure the totals cover the
// statements whose results were consumed before it.
func Execute(ctx context.Context, session database.Session, statements *stream.Source[string], opts ...Option) (Totals, error) {
	var t Totals
	err := stream.Run(ctx, stream.Via(statements, Flow(session, func(sql string) (string, error) {
		return sql, nil
	}, opts...)), stream.Fold(&t, func(acc Totals, n int64) Totals {
		acc.Statements++
		acc.RowsAffected += n
		return acc
	}))
	return t, err
}

func checkArgs(session database.Session, haveFuncs bool) error {
	if session == nil {
		return errs.New(errs.ErrKindInvalidInput, "session is required")
	}
	if !haveFuncs {
		return errs.New(errs.ErrKindInvalidInput, "statement function is required")
	}
	return nil
}
