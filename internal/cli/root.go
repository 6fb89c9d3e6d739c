// Package cli holds the command line entry points of the booking backend.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/config"
	"github.com/nekogravitycat/massage-booking-backend/internal/logging"
)

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "massage-booking",
		Short:         "Massage booking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSlotsCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	return cmd
}

// setup loads the configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.IsProduction, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
