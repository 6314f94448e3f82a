// Package mysql opens a database.Session against MySQL through
// go-sql-driver/mysql and the shared sqldb session.
package mysql

import (
	"context"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/database/sqldb"
	"github.com/koustreak/sqlstream/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied  = 1044
	errAccessDenied    = 1045
	errNoDatabase      = 1046
	errUnknownDatabase = 1049
	errTooManyConns    = 1040
	errUserConnLimit   = 1203
	errBadFieldError   = 1054
	errParseError      = 1064
	errNoSuchTable     = 1146
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
	errLockWaitTimeout = 1205
	errQueryTimeout    = 3024
	errTableAccess     = 1142
)

// New opens a MySQL pool using cfg and returns a ready session.
// The DSN is normalised with NormalizeDSN before opening.
func New(ctx context.Context, cfg *database.Config) (*sqldb.Session, error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	c := *cfg
	c.DSN = dsn
	return sqldb.Open(ctx, "mysql", &c, Classify)
}

// Classify maps go-sql-driver/mysql errors to an ErrKind.
func Classify(err error) (errs.ErrKind, string, bool) {
	var mysqlErr *gomysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		if errors.Is(err, gomysql.ErrInvalidConn) {
			return errs.ErrKindConnectionFailed, "invalid connection", true
		}
		return errs.ErrKindUnknown, "", false
	}
	return classifyMySQLCode(mysqlErr.Number), mysqlErr.Message, true
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errAccessDenied, errDBAccessDenied, errTableAccess:
		return errs.ErrKindPermissionDenied
	case errNoDatabase, errUnknownDatabase, errTooManyConns, errUserConnLimit:
		return errs.ErrKindConnectionFailed
	case errDuplicateEntry, errRowIsReferenced, errNoReferencedRow:
		return errs.ErrKindConflict
	case errLockWaitTimeout, errQueryTimeout:
		return errs.ErrKindTimeout
	case errBadFieldError, errParseError, errNoSuchTable:
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
