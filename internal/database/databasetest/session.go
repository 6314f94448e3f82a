// Package databasetest provides an in-memory database.Session for tests.
package databasetest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
)

// Result is the scripted answer to one query.
type Result struct {
	Columns []string
	Rows    [][]any

	// FetchErr, when set, is returned by Rows.Err after FailAt rows were
	// delivered.
	FetchErr error
	FailAt   int
}

// Session is a scripted database.Session. Queries are answered from
// Results keyed by exact SQL text; Exec calls ExecFunc, or reports one
// affected row when ExecFunc is nil. Exec records every statement.
type Session struct {
	Results  map[string]Result
	ExecFunc func(ctx context.Context, sql string) (int64, error)

	// ExecDelay makes every Exec sleep (context-aware) before running.
	ExecDelay time.Duration

	mu          sync.Mutex
	executed    []string
	inFlight    int
	maxInFlight int
	openRows    int
	closed      bool
}

// NewSession returns an empty scripted session.
func NewSession() *Session {
	return &Session{Results: map[string]Result{}}
}

// On registers the result for query.
func (s *Session) On(query string, r Result) *Session {
	s.Results[query] = r
	return s
}

func (s *Session) Query(ctx context.Context, sql string) (database.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "query canceled", err)
	}
	r, ok := s.Results[sql]
	if !ok {
		return nil, errs.Newf(errs.ErrKindQueryFailed, "unexpected query %q", sql)
	}
	s.mu.Lock()
	s.openRows++
	s.mu.Unlock()
	return &rows{session: s, result: r, pos: -1}, nil
}

func (s *Session) Exec(ctx context.Context, sql string) (int64, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.ExecDelay > 0 {
		select {
		case <-time.After(s.ExecDelay):
		case <-ctx.Done():
			return 0, errs.Wrap(errs.ErrKindTimeout, "exec canceled", ctx.Err())
		}
	}

	s.mu.Lock()
	s.executed = append(s.executed, sql)
	s.mu.Unlock()

	if s.ExecFunc != nil {
		return s.ExecFunc(ctx, sql)
	}
	return 1, nil
}

func (s *Session) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Executed returns the statements passed to Exec, in completion order.
func (s *Session) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

// MaxInFlight returns the highest number of concurrent Exec calls observed.
func (s *Session) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// OpenRows returns the number of result sets not yet closed.
func (s *Session) OpenRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openRows
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset forgets executed statements and concurrency counters.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = nil
	s.maxInFlight = 0
}

type rows struct {
	session *Session
	result  Result
	pos     int
	err     error
	closed  bool
}

func (r *rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	next := r.pos + 1
	if r.result.FetchErr != nil && next >= r.result.FailAt {
		r.err = r.result.FetchErr
		return false
	}
	if next >= len(r.result.Rows) {
		return false
	}
	r.pos = next
	return true
}

// Scan assigns by reflection, mirroring what drivers do for simple types.
func (r *rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.result.Rows) {
		return errs.New(errs.ErrKindQueryFailed, "scan called without a current row")
	}
	row := r.result.Rows[r.pos]
	if len(dest) != len(row) {
		return errs.Newf(errs.ErrKindQueryFailed, "expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return errs.Newf(errs.ErrKindInvalidInput, "destination %d is not a non-nil pointer", i)
		}
		target := dv.Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		src := reflect.ValueOf(row[i])
		switch {
		case src.Type().AssignableTo(target.Type()):
			target.Set(src)
		case src.Type().ConvertibleTo(target.Type()):
			target.Set(src.Convert(target.Type()))
		default:
			return fmt.Errorf("cannot scan %T into %s", row[i], target.Type())
		}
	}
	return nil
}

func (r *rows) Columns() ([]string, error) { return r.result.Columns, nil }

func (r *rows) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.session.mu.Lock()
	r.session.openRows--
	r.session.mu.Unlock()
}

func (r *rows) Err() error { return r.err }
