package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nekogravitycat/massage-booking-backend/internal/config"
	"github.com/nekogravitycat/massage-booking-backend/internal/db"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema for STORE=postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Store != config.StorePostgres {
				return errors.New("migrate only applies to STORE=postgres")
			}

			pool, err := db.NewPool(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			for _, f := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", f)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}
}
