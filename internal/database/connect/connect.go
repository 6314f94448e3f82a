// Package connect opens a database.Session for a Config, picking the driver
// package from Config.Driver.
package connect

import (
	"context"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/database/mysql"
	"github.com/koustreak/sqlstream/internal/database/postgres"
	"github.com/koustreak/sqlstream/internal/database/pq"
	"github.com/koustreak/sqlstream/internal/errs"
)

// Open validates cfg and connects with the matching driver.
func Open(ctx context.Context, cfg *database.Config) (database.Session, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "database config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Each branch checks err itself so a failed open never yields a
	// non-nil interface holding a nil pointer.
	switch cfg.Driver {
	case database.DriverPostgres:
		s, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case database.DriverPQ:
		s, err := pq.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case database.DriverMySQL:
		s, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported driver %q", cfg.Driver)
	}
}
