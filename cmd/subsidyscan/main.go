package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"subsidyscan/internal/app"
	"subsidyscan/internal/config"
	"subsidyscan/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "subsidyscan: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "subsidyscan",
		Short:        "Subsidy-registry ingestion pipeline",
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCmd(), newServeCmd())
	return cmd
}

// newRunCmd performs exactly one invocation and prints the run summary as
// JSON, so an external scheduler can alert on failed or partial outcomes.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute a single ingestion invocation and print its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			run, runErr := application.RunOnce(cmd.Context())
			if run != nil {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(run); err != nil {
					return fmt.Errorf("encode run summary: %w", err)
				}
			}
			return runErr
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cron-triggered ingestion loop until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return application.Serve(cmd.Context())
		},
	}
}

func buildApp(ctx context.Context) (*app.Application, func(), error) {
	cfg := config.Load()
	logger, closeLog := logging.New(cfg.Logging.Level, cfg.Logging.File)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}

	cleanup := func() {
		application.Close()
		_ = closeLog()
	}
	return application, cleanup, nil
}
