// Package postgres implements database.Session on top of pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
)

// Driver is a PostgreSQL implementation of database.Session backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	d := &Driver{pool: pool, queryTimeout: cfg.QueryTimeout}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// --- database.Session implementation ---

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	d.pool.Close()
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, sql string) (database.Rows, error) {
	qctx, cancel := database.WithQueryTimeout(ctx, d.queryTimeout)
	rows, err := d.pool.Query(qctx, sql)
	if err != nil {
		cancel()
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows, cancel: cancel}, nil
}

// Exec executes a statement and reports the affected row count from the command tag.
func (d *Driver) Exec(ctx context.Context, sql string) (int64, error) {
	qctx, cancel := database.WithQueryTimeout(ctx, d.queryTimeout)
	defer cancel()

	tag, err := d.pool.Exec(qctx, sql)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

// Pool returns the underlying pgxpool (for advanced use)
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows   pgx.Rows
	cancel context.CancelFunc
}

func (r *pgxRows) Next() bool { return r.rows.Next() }

func (r *pgxRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "failed to scan row")
	}
	return nil
}

func (r *pgxRows) Close() {
	r.rows.Close()
	r.cancel()
}

func (r *pgxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "error during row iteration")
	}
	return nil
}

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// --- error mapping ---

// PostgreSQL SQLSTATE classes and codes used for classification.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection       = "08"
	pgClassIntegrity        = "23"
	pgClassInsufficientPriv = "42501"
	pgClassInvalidAuth      = "28"
	pgQueryCanceled         = "57014"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Context cancellation / deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifySQLState maps a SQLSTATE code to an ErrKind.
func classifySQLState(code string) errs.ErrKind {
	switch {
	case code == pgQueryCanceled:
		return errs.ErrKindTimeout
	case code == pgClassInsufficientPriv:
		return errs.ErrKindPermissionDenied
	case len(code) < 2:
		return errs.ErrKindQueryFailed
	case code[:2] == pgClassConnection:
		return errs.ErrKindConnectionFailed
	case code[:2] == pgClassInvalidAuth:
		return errs.ErrKindPermissionDenied
	case code[:2] == pgClassIntegrity:
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
