// dmut reconciles a database with a directory of declarative SQL mutations.
//
// Usage:
//
//	dmut status      # list local mutations and their state
//	dmut plan        # show what apply would retract and apply
//	dmut apply       # reconcile in one transaction
//	dmut bootstrap   # create the audit table
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/dmut/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
