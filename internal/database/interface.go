// Package database defines the session contract sqlstream streams over.
//
// A Session is an established connection context (usually a pool). It is
// owned by the caller: the stream adapters only borrow it for the duration
// of a Query or Exec and never close or reconfigure it.
//
// Drivers live in subpackages (postgres, sqldb, mysql, pq); callers depend
// on this package only.
package database

import "context"

// Session is the contract every driver implements.
//
// Statements are passed as complete SQL text. There is no parameter binding:
// building safe statement text is the caller's job (see QuoteIdent and
// QuoteLiteral).
type Session interface {
	// Query executes a statement that returns rows.
	// The caller must Close the returned Rows.
	Query(ctx context.Context, sql string) (Rows, error)

	// Exec executes a statement and returns the number of affected rows.
	Exec(ctx context.Context, sql string) (int64, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the session.
	Close()
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}
