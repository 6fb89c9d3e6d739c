package cli

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/app"
)

const shutdownTimeout = 5 * time.Second

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			container, err := app.NewContainer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := container.Close(); err != nil {
					logger.Warn("close components failed", zap.Error(err))
				}
			}()

			// Use http.Server for graceful shutdown
			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           container.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			var wg sync.WaitGroup
			if container.Bot != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					container.Bot.Run(ctx, container.BotAPI)
				}()
			}

			// Wait for Ctrl+C or a listener failure
			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			case err := <-serverErr:
				logger.Error("server error", zap.Error(err))
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server forced to shutdown", zap.Error(err))
			}
			wg.Wait()

			logger.Info("server exited gracefully")
			return nil
		},
	}
}
