// Package pq opens a database.Session against PostgreSQL through lib/pq
// and the shared sqldb session. Use it where pgx is not an option, e.g.
// when the pool must be a plain *sql.DB shared with other code.
package pq

import (
	"context"
	"errors"

	"github.com/lib/pq"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/database/sqldb"
	"github.com/koustreak/sqlstream/internal/errs"
)

// New opens a lib/pq pool using cfg and returns a ready session.
func New(ctx context.Context, cfg *database.Config) (*sqldb.Session, error) {
	return sqldb.Open(ctx, "postgres", cfg, Classify)
}

// Classify maps *pq.Error SQLSTATE classes to an ErrKind.
func Classify(err error) (errs.ErrKind, string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return errs.ErrKindUnknown, "", false
	}

	switch pqErr.Code.Class() {
	case "08":
		return errs.ErrKindConnectionFailed, pqErr.Message, true
	case "23":
		return errs.ErrKindConflict, pqErr.Message, true
	case "28":
		return errs.ErrKindPermissionDenied, pqErr.Message, true
	}

	switch pqErr.Code.Name() {
	case "insufficient_privilege":
		return errs.ErrKindPermissionDenied, pqErr.Message, true
	case "query_canceled":
		return errs.ErrKindTimeout, pqErr.Message, true
	}
	return errs.ErrKindQueryFailed, pqErr.Message, true
}
