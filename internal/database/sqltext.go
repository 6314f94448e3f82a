package database

import (
	"context"
	"strings"
	"time"
)

// Dialect controls identifier and literal quoting for statement text.
type Dialect int

const (
	// DialectPostgres quotes identifiers with "double quotes".
	DialectPostgres Dialect = iota

	// DialectMySQL quotes identifiers with `backticks` and escapes
	// backslashes inside literals.
	DialectMySQL
)

// DialectOf returns the quoting dialect for a driver.
func DialectOf(d Driver) Dialect {
	if d == DriverMySQL {
		return DialectMySQL
	}
	return DialectPostgres
}

// Name returns the dialect name as understood by goqu.
func (d Dialect) Name() string {
	if d == DialectMySQL {
		return "mysql"
	}
	return "postgres"
}

// QuoteIdent quotes a table or column name for the dialect.
// Embedded quote characters are doubled.
func QuoteIdent(d Dialect, name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
//
// Sessions take complete statement text with no parameter binding, so every
// caller-controlled value spliced into a statement must go through here
// (or through a statement builder that does the same).
func QuoteLiteral(d Dialect, s string) string {
	if d == DialectMySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// WithQueryTimeout derives a context bounded by timeout.
// A non-positive timeout returns ctx unchanged with a no-op cancel.
func WithQueryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
