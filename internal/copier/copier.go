// Package copier moves the result of a query from one session into a table
// of another, as a stream of multi-row INSERT statements.
package copier

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // registers "mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers "postgres"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/logger"
	"github.com/koustreak/sqlstream/internal/sqlstream"
	"github.com/koustreak/sqlstream/internal/stream"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500

// Copier copies rows between two sessions. Target statements are rendered
// for the target dialect with every value inlined as a quoted literal.
type Copier struct {
	src, dst    database.Session
	dialect     database.Dialect
	batchSize   int
	parallelism int
	log         *logger.Logger
}

// Option configures a Copier.
type Option func(*Copier)

// WithBatchSize sets how many rows go into one INSERT.
func WithBatchSize(n int) Option {
	return func(c *Copier) { c.batchSize = n }
}

// WithParallelism sets how many INSERT statements may run at once.
func WithParallelism(n int) Option {
	return func(c *Copier) { c.parallelism = n }
}

// WithLogger sets the logger for progress and failures.
func WithLogger(l *logger.Logger) Option {
	return func(c *Copier) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a Copier reading from src and writing to dst, whose SQL
// dialect is d.
func New(src, dst database.Session, d database.Dialect, opts ...Option) *Copier {
	c := &Copier{
		src:         src,
		dst:         dst,
		dialect:     d,
		batchSize:   DefaultBatchSize,
		parallelism: sqlstream.DefaultParallelism,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Statements returns the INSERT statements that copying query into table
// would execute, without executing them.
func (c *Copier) Statements(query, table string) *stream.Source[string] {
	if table == "" {
		return stream.Failed[string](errs.New(errs.ErrKindInvalidInput, "target table is required"))
	}
	if c.batchSize < 1 {
		return stream.Failed[string](errs.Newf(errs.ErrKindInvalidInput, "batch size must be >= 1, got %d", c.batchSize))
	}

	rows := sqlstream.Source(c.src, query, record, sqlstream.WithLogger(c.log))
	builder := goqu.Dialect(c.dialect.Name())

	return stream.Map(stream.Batch(rows, c.batchSize), func(_ context.Context, batch []any) (string, error) {
		sql, _, err := builder.Insert(table).Rows(batch...).ToSQL()
		if err != nil {
			return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to render insert", err)
		}
		return sql, nil
	})
}

// Copy streams every row of query into table and returns the number of
// rows the target reported as inserted. Rows are fetched only as fast as
// the target accepts them.
func (c *Copier) Copy(ctx context.Context, query, table string) (int64, error) {
	var total int64
	insert := sqlstream.Flow(c.dst, func(sql string) (string, error) {
		return sql, nil
	}, sqlstream.WithParallelism(c.parallelism), sqlstream.WithLogger(c.log))

	err := stream.Run(ctx, stream.Via(c.Statements(query, table), insert), stream.Fold(&total, func(acc, n int64) int64 {
		return acc + n
	}))
	if err != nil {
		c.log.ErrorWith("copy failed", err, map[string]any{"table": table, "rows": total})
		return total, err
	}

	c.log.InfoWith("copy finished", map[string]any{"table": table, "rows": total})
	return total, nil
}

// record turns a row into a goqu.Record. Columns become the INSERT column
// list, so the query's column names must match the target table.
func record(r database.Row) (any, error) {
	m, err := r.Map()
	if err != nil {
		return nil, err
	}
	return goqu.Record(m), nil
}
