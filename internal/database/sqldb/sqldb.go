// Package sqldb implements database.Session over database/sql via sqlx.
//
// It is the shared base for every driver registered with database/sql
// (go-sql-driver/mysql, lib/pq, ...). Engine packages supply the driver name
// and an error classifier; everything else lives here.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// Classifier maps an engine-native error to an ErrKind and a message suffix.
// ok is false when the error is not one the engine recognises.
type Classifier func(err error) (kind errs.ErrKind, detail string, ok bool)

// Session is a database.Session backed by *sqlx.DB.
// It is safe for concurrent use by multiple goroutines.
type Session struct {
	db           *sqlx.DB
	classify     Classifier
	queryTimeout time.Duration
}

// Open opens a pool for driverName using cfg and pings it.
func Open(ctx context.Context, driverName string, cfg *database.Config, classify Classifier) (*Session, error) {
	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	configurePool(db.DB, cfg)

	s := New(db, classify)
	s.queryTimeout = cfg.QueryTimeout

	pingCtx, cancel := database.WithQueryTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := s.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// New wraps an already-open *sqlx.DB. classify may be nil.
func New(db *sqlx.DB, classify Classifier) *Session {
	return &Session{db: db, classify: classify}
}

// configurePool applies pool settings, falling back to defaults for zero values.
func configurePool(db *sql.DB, cfg *database.Config) {
	maxOpen := int(cfg.MaxConns)
	if maxOpen == 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := int(cfg.MinConns)
	if maxIdle == 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := cfg.MaxConnLifetime
	if lifetime == 0 {
		lifetime = defaultConnMaxLifetime
	}
	idle := cfg.MaxConnIdleTime
	if idle == 0 {
		idle = defaultConnMaxIdleTime
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idle)
}

// --- database.Session implementation ---

func (s *Session) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		mapped := s.mapError(err, "ping failed")
		if mapped.Kind == errs.ErrKindQueryFailed {
			mapped.Kind = errs.ErrKindConnectionFailed
		}
		return mapped
	}
	return nil
}

func (s *Session) Close() {
	_ = s.db.Close()
}

func (s *Session) Query(ctx context.Context, query string) (database.Rows, error) {
	qctx, cancel := database.WithQueryTimeout(ctx, s.queryTimeout)
	rows, err := s.db.QueryxContext(qctx, query)
	if err != nil {
		cancel()
		return nil, s.mapError(err, "query failed")
	}
	return &sqlRows{rows: rows, cancel: cancel, session: s}, nil
}

func (s *Session) Exec(ctx context.Context, query string) (int64, error) {
	qctx, cancel := database.WithQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(qctx, query)
	if err != nil {
		return 0, s.mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.mapError(err, "rows affected unavailable")
	}
	return n, nil
}

// DB returns the underlying *sqlx.DB (for advanced use)
func (s *Session) DB() *sqlx.DB {
	return s.db
}

// --- sqlx type wrappers ---

type sqlRows struct {
	rows    *sqlx.Rows
	cancel  context.CancelFunc
	session *Session
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return r.session.mapError(err, "failed to scan row")
	}
	return nil
}

func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }

func (r *sqlRows) Close() {
	_ = r.rows.Close()
	r.cancel()
}

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.session.mapError(err, "error during row iteration")
	}
	return nil
}

// --- error mapping ---

// mapError translates database/sql and engine errors into *errs.Error.
func (s *Session) mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	if s.classify != nil {
		if kind, detail, ok := s.classify(err); ok {
			if detail != "" {
				msg = msg + ": " + detail
			}
			return errs.Wrap(kind, msg, err)
		}
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
