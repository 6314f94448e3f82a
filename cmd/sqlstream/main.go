// Command sqlstream streams query results and SQL scripts through a
// database session.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/sqlstream/cmd/sqlstream/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
