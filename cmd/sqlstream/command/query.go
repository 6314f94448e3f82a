package command

import (
	"bufio"
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/koustreak/sqlstream/internal/sqlstream"
	"github.com/koustreak/sqlstream/internal/stream"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL",
		Short: "Run a query and print its rows as JSON lines",
		Example: `  sqlstream query "SELECT id, email FROM users WHERE active"
  sqlstream query --dsn postgres://localhost/app "SELECT now()"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			out := bufio.NewWriter(cmd.OutOrStdout())
			enc := json.NewEncoder(out)

			rows := sqlstream.Source(session, args[0], sqlstream.RowMap, sqlstream.WithLogger(a.log))
			err = stream.Run(cmd.Context(), rows, stream.ForEach(func(_ context.Context, row map[string]any) error {
				return enc.Encode(row)
			}))
			if flushErr := out.Flush(); err == nil {
				err = flushErr
			}
			return err
		},
	}
}
