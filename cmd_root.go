package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errRecordsFailed makes the process exit 1 after a load that completed with
// per-record failures. The result has already been printed.
var errRecordsFailed = errors.New("one or more records failed to load")

type rootOptions struct {
	ConfigPath string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "jobmart",
		Short:         "Incremental loader for the job-posting star schema",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config YAML (default ./config.yaml when present)")

	cmd.AddCommand(newMigrateCmd(&opts))
	cmd.AddCommand(newLoadCmd(&opts))
	cmd.AddCommand(newDeleteCmd(&opts))
	cmd.AddCommand(newShowCmd(&opts))
	cmd.AddCommand(newAuditCmd(&opts))
	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a running load stops starting new records and reports the rest
// as failed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	if !errors.Is(err, errRecordsFailed) {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(1)
}
