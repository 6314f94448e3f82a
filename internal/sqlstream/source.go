package sqlstream

import (
	"context"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/logger"
	"github.com/koustreak/sqlstream/internal/stream"
)

// Source streams the rows of sql through fn.
//
// The query is issued when the source is first pulled, and rows are fetched
// one at a time as the consumer asks for them. fn runs exactly once per row
// on the pulling goroutine; the Row it receives is released when fn
// returns. A fetch failure, a decode failure or an error from fn ends the
// stream with that error.
func Source[T any](session database.Session, sql string, fn func(database.Row) (T, error), opts ...Option) *stream.Source[T] {
	o, err := buildOptions(opts)
	if err != nil {
		return stream.Failed[T](err)
	}
	if session == nil {
		return stream.Failed[T](errs.New(errs.ErrKindInvalidInput, "session is required"))
	}
	if fn == nil {
		return stream.Failed[T](errs.New(errs.ErrKindInvalidInput, "row function is required"))
	}

	return stream.FromFunc(func(context.Context) stream.Iterator[T] {
		return &rowIter[T]{session: session, sql: sql, fn: fn, log: o.log}
	})
}

// rowIter defers the query to the first Next so the source stays lazy.
type rowIter[T any] struct {
	session database.Session
	sql     string
	fn      func(database.Row) (T, error)
	log     *logger.Logger

	cursor *database.Cursor
	count  int64
	err    error
	done   bool
}

func (it *rowIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.err != nil {
		return zero, false, it.err
	}
	if it.done {
		return zero, false, nil
	}

	if it.cursor == nil {
		if err := ctx.Err(); err != nil {
			return zero, false, it.fail(err)
		}
		it.log.DebugWith("query started", map[string]any{"sql": it.log.SQL(it.sql)})
		rows, err := it.session.Query(ctx, it.sql)
		if err != nil {
			return zero, false, it.fail(err)
		}
		cursor, err := database.NewCursor(rows)
		if err != nil {
			return zero, false, it.fail(err)
		}
		it.cursor = cursor
	}

	row, ok := it.cursor.Next()
	if !ok {
		if err := it.cursor.Err(); err != nil {
			return zero, false, it.fail(err)
		}
		it.done = true
		it.log.DebugWith("query finished", map[string]any{"rows": it.count})
		it.release()
		return zero, false, nil
	}

	val, err := it.fn(row)
	it.cursor.Release()
	if err != nil {
		return zero, false, it.fail(err)
	}
	it.count++
	return val, true, nil
}

func (it *rowIter[T]) Close() error {
	it.release()
	return nil
}

func (it *rowIter[T]) fail(err error) error {
	it.err = err
	it.log.ErrorWith("query stream failed", err, map[string]any{"rows": it.count})
	it.release()
	return err
}

func (it *rowIter[T]) release() {
	if it.cursor != nil {
		it.cursor.Close()
		it.cursor = nil
	}
}

// RowMap is a row function that decodes a row into column -> value. Byte
// slices, which database/sql drivers return for text columns, become
// strings so the map encodes cleanly as JSON.
func RowMap(r database.Row) (map[string]any, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			m[k] = string(b)
		}
	}
	return m, nil
}
