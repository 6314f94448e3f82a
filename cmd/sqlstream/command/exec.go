package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/script"
	"github.com/koustreak/sqlstream/internal/sqlstream"
	"github.com/koustreak/sqlstream/internal/stream"
)

func newExecCommand(a *app) *cobra.Command {
	var (
		object string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "exec [FILE | -]",
		Short: "Execute an SQL script statement by statement",
		Long: `exec splits a script into statements and executes them in order, up to
--parallelism at a time. The script comes from FILE, from stdin ("-" or no
argument) or, with --object, from the configured object store.

Execution stops at the first failing statement.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statements, cleanup, err := a.scriptSource(cmd, args, object)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if dryRun {
				return printStatements(cmd.Context(), out, statements)
			}

			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			totals, err := sqlstream.Execute(cmd.Context(), session, statements,
				sqlstream.WithParallelism(a.cfg.Stream.Parallelism), sqlstream.WithLogger(a.log))
			fmt.Fprintf(out, "%d statements, %d rows affected\n", totals.Statements, totals.RowsAffected)
			return err
		},
	}

	cmd.Flags().StringVar(&object, "object", "", "key of a script in the configured object store")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements instead of executing them")
	return cmd
}

// scriptSource resolves where the script comes from. cleanup releases the
// object store, if one was opened.
func (a *app) scriptSource(cmd *cobra.Command, args []string, object string) (*stream.Source[string], func(), error) {
	noop := func() {}
	d := a.dialect()

	if object != "" {
		if len(args) > 0 {
			return nil, noop, errs.New(errs.ErrKindInvalidInput, "give either FILE or --object, not both")
		}
		store, err := a.store(cmd)
		if err != nil {
			return nil, noop, err
		}
		return filestore.ScriptSource(store, a.cfg.Filestore.Bucket, object, d), func() { _ = store.Close() }, nil
	}

	if len(args) == 0 || args[0] == "-" {
		stdin := cmd.InOrStdin()
		return script.Source(func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(stdin), nil
		}, d), noop, nil
	}

	path := args[0]
	return script.Source(func(context.Context) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "script not found", err)
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot open script", err)
		}
		return f, nil
	}, d), noop, nil
}

// printStatements writes each statement terminated by a semicolon.
func printStatements(ctx context.Context, out io.Writer, statements *stream.Source[string]) error {
	return stream.Run(ctx, statements, stream.ForEach(func(_ context.Context, sql string) error {
		_, err := fmt.Fprintf(out, "%s;\n", sql)
		return err
	}))
}
