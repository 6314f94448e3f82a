package command

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries and scripts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer session.Close()

			var store filestore.Store
			if a.cfg.Filestore.Enabled() {
				if store, err = a.store(cmd); err != nil {
					return err
				}
				defer store.Close()
			}

			srv := server.New(session, server.Options{
				Addr:        a.cfg.Server.Addr,
				AllowExec:   a.cfg.Server.AllowExec,
				Parallelism: a.cfg.Stream.Parallelism,
				Dialect:     a.dialect(),
				Store:       store,
				Bucket:      a.cfg.Filestore.Bucket,
				Logger:      a.log,
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
