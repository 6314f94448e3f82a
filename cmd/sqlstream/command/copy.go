package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/sqlstream/internal/copier"
	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
)

func newCopyCommand(a *app) *cobra.Command {
	var (
		query        string
		table        string
		targetDSN    string
		targetDriver string
		batchSize    int
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy the rows of a query into a table of another database",
		Example: `  sqlstream copy --dsn postgres://src/app --target-dsn "app:pw@tcp(dst:3306)/app" \
    --target-driver mysql --query "SELECT id, email FROM users" --table users`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := a.cfg.Database
			target.DSN = targetDSN
			if targetDriver != "" {
				target.Driver = database.Driver(targetDriver)
			}
			if err := target.Validate(); err != nil {
				return err
			}

			src, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer src.Close()

			var dst database.Session
			if !dryRun {
				dst, err = a.openSession(cmd.Context(), &target)
				if err != nil {
					return errs.Wrap(errs.KindOf(err), "failed to open target database", err)
				}
				defer dst.Close()
			}

			c := copier.New(src, dst, database.DialectOf(target.Driver),
				copier.WithBatchSize(batchSize),
				copier.WithParallelism(a.cfg.Stream.Parallelism),
				copier.WithLogger(a.log))

			out := cmd.OutOrStdout()
			if dryRun {
				return printStatements(cmd.Context(), out, c.Statements(query, table))
			}

			n, err := c.Copy(cmd.Context(), query, table)
			fmt.Fprintf(out, "copied %d rows into %s\n", n, table)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&query, "query", "", "query producing the rows to copy")
	flags.StringVar(&table, "table", "", "target table; query columns must match its columns")
	flags.StringVar(&targetDSN, "target-dsn", "", "target database connection string")
	flags.StringVar(&targetDriver, "target-driver", "", "target driver, defaults to the source driver")
	flags.IntVar(&batchSize, "batch-size", copier.DefaultBatchSize, "rows per INSERT statement")
	flags.BoolVar(&dryRun, "dry-run", false, "print the INSERT statements instead of executing them")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("target-dsn")
	return cmd
}
