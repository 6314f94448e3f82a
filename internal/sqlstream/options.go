package sqlstream

import (
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/logger"
)

// DefaultParallelism is used when WithParallelism is not given.
const DefaultParallelism = 1

type options struct {
	parallelism int
	log         *logger.Logger
}

// Option configures a flow or sink.
type Option func(*options)

// WithParallelism sets how many statements may execute concurrently.
// Results still come out in input order. n must be at least 1.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithLogger sets the logger used for per-statement debug lines and
// terminal failures.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{parallelism: DefaultParallelism, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		return o, errs.Newf(errs.ErrKindInvalidInput, "parallelism must be >= 1, got %d", o.parallelism)
	}
	return o, nil
}
