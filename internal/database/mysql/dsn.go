package mysql

import (
	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/sqlstream/internal/errs"
)

// NormalizeDSN parses a go-sql-driver DSN and enables the options the row
// accessor relies on: parseTime, so DATETIME columns arrive as time.Time,
// and multiStatements disabled, so each statement string is one statement.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql DSN", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = false
	return cfg.FormatDSN(), nil
}
