package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// runCmd creates the "run" subcommand, which runs one job once with its
// retry budget and exits.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run [job]",
		Short:     "Run one job once",
		Long:      "Run a single job (currency, weather or news) once, retrying like the scheduler would.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"currency", "weather", "news"},
		RunE:      runJob,
	}
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.runner.RunOnce(ctx, args[0])
	if res.Job != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s after %d attempt(s) in %s",
			res.Job, res.Outcome, res.Attempts, res.Duration.Round(time.Millisecond))
		if res.Partial {
			fmt.Fprint(cmd.OutOrStdout(), " (partial)")
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return err
}
