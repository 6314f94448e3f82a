package script

import (
	"context"
	"io"
	"strings"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/stream"
)

// Opener returns a fresh reader over the script each time it is called.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Source streams the statements of the script returned by open. The script
// is opened when the source is first pulled and read incrementally, so a
// large file never has to fit in memory. Each run opens the script again.
func Source(open Opener, d database.Dialect) *stream.Source[string] {
	return stream.FromFunc(func(context.Context) stream.Iterator[string] {
		return &statementIter{open: open, dialect: d}
	})
}

// FromString is Source over an in-memory script.
func FromString(text string, d database.Dialect) *stream.Source[string] {
	return Source(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(text)), nil
	}, d)
}

// Split returns every statement of text.
func Split(text string, d database.Dialect) ([]string, error) {
	sp := NewSplitter(strings.NewReader(text), d)
	var out []string
	for {
		stmt, ok, err := sp.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, stmt)
	}
}

type statementIter struct {
	open    Opener
	dialect database.Dialect

	rc       io.ReadCloser
	splitter *Splitter
	err      error
}

func (it *statementIter) Next(ctx context.Context) (string, bool, error) {
	if it.err != nil {
		return "", false, it.err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if it.splitter == nil {
		rc, err := it.open(ctx)
		if err != nil {
			it.err = err
			return "", false, err
		}
		it.rc = rc
		it.splitter = NewSplitter(rc, it.dialect)
	}

	stmt, ok, err := it.splitter.Next()
	if err != nil {
		it.err = err
	}
	return stmt, ok, err
}

func (it *statementIter) Close() error {
	if it.rc == nil {
		return nil
	}
	err := it.rc.Close()
	it.rc = nil
	return err
}
