package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nekogravitycat/massage-booking-backend/internal/app"
	"github.com/nekogravitycat/massage-booking-backend/internal/cleanup"
)

func NewWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process delayed booking cleanup tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if !cfg.CleanupEnabled {
				return errors.New("CLEANUP_ENABLED must be true to run the cleanup worker")
			}

			repo, closeRepo, err := app.OpenRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			return cleanup.RunWorker(ctx, cleanup.WorkerConfig{
				Redis:       app.RedisOpt(cfg),
				Queue:       cfg.CleanupQueue,
				Concurrency: concurrency,
			}, repo, logger.Named("cleanup"))
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "number of tasks processed in parallel")
	return cmd
}
