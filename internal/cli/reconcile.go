package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"scholarship-exam-service/internal/config"
)

// NewReconcileCmd retries identity deletions that failed during candidate removal.
func NewReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Delete orphaned identities left by failed candidate removals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runReconcile(cmd.Context(), cfg)
		},
	}
}

func runReconcile(ctx context.Context, cfg config.Config) error {
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr not configured: orphaned identities are tracked there")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	removed, err := b.candidateService().ReconcileOrphans(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("removed", removed).Msg("orphan reconciliation finished")
	return nil
}
