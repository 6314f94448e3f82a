// Package command implements the sqlstream CLI.
package command

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/koustreak/sqlstream/internal/config"
	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/database/connect"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/filestore/minio"
	"github.com/koustreak/sqlstream/internal/logger"
)

var errNoStore = errs.New(errs.ErrKindInvalidInput, "no filestore configured (set filestore.endpoint)")

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath  string
	dsn         string
	driver      string
	parallelism int
	logLevel    string

	cfg *config.Config
	log *logger.Logger

	openSession func(ctx context.Context, cfg *database.Config) (database.Session, error)
	openStore   func(ctx context.Context, cfg *filestore.Config) (filestore.Store, error)
}

// NewRootCommand returns the sqlstream command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{
		openSession: connect.Open,
		openStore: func(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
			d, err := minio.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlstream",
		Short: "Stream query results and SQL scripts through a database session",
		Long: `sqlstream runs queries as row streams and SQL scripts as statement streams
against PostgreSQL or MySQL.

Configuration is read from --config (YAML). SQLSTREAM_DSN and
SQLSTREAM_LOG_LEVEL override the file; flags override both.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Usage is for flag errors only, which cobra reports before this runs.
			cmd.SilenceUsage = true
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to the YAML config file")
	flags.StringVar(&a.dsn, "dsn", "", "database connection string")
	flags.StringVar(&a.driver, "driver", "", "database driver: postgres, pq or mysql")
	flags.IntVarP(&a.parallelism, "parallelism", "p", 0, "statements executed concurrently")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn, error or off")

	root.AddCommand(
		newQueryCommand(a),
		newExecCommand(a),
		newCopyCommand(a),
		newServeCommand(a),
		newScriptsCommand(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.Load(a.configPath, func(c *config.Config) {
		if flags.Changed("dsn") {
			c.Database.DSN = a.dsn
		}
		if flags.Changed("driver") {
			c.Database.Driver = database.Driver(a.driver)
		}
		if flags.Changed("parallelism") {
			c.Stream.Parallelism = a.parallelism
		}
		if flags.Changed("log-level") {
			c.Logger.Level = a.logLevel
		}
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	cfg.Logger.Output = cmd.ErrOrStderr()
	a.log = logger.New(&cfg.Logger).With().Str("command", cmd.Name()).Logger()
	return nil
}

// session opens the configured database.
func (a *app) session(cmd *cobra.Command) (database.Session, error) {
	s, err := a.openSession(cmd.Context(), &a.cfg.Database)
	if err != nil {
		a.log.ErrorWith("failed to open database", err, map[string]any{"driver": string(a.cfg.Database.Driver)})
		return nil, err
	}
	return s, nil
}

func (a *app) store(cmd *cobra.Command) (filestore.Store, error) {
	if !a.cfg.Filestore.Enabled() {
		return nil, errNoStore
	}
	st, err := a.openStore(cmd.Context(), &a.cfg.Filestore)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (a *app) dialect() database.Dialect {
	return database.DialectOf(a.cfg.Database.Driver)
}
