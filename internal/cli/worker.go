package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scholarship-exam-service/internal/config"
)

// NewWorkerCmd runs only the scorecard worker against the Redis queue.
func NewWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume scorecard jobs and write PDFs to blob storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
}

func runWorker(ctx context.Context, cfg config.Config) error {
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr not configured: a standalone worker needs the shared queue")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	worker, err := b.worker()
	if err != nil {
		return err
	}
	return worker.Run(ctx)
}
