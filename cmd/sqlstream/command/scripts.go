package command

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newScriptsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scripts [PREFIX]",
		Short: "List the scripts in the configured object store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}

			store, err := a.store(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			objects, err := store.ListObjects(cmd.Context(), a.cfg.Filestore.Bucket, prefix)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
			for _, o := range objects {
				modified := "-"
				if !o.LastModified.IsZero() {
					modified = o.LastModified.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, modified)
			}
			return tw.Flush()
		},
	}
}
