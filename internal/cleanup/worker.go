package cleanup

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
)

// Deleter is the part of booking.Repository the worker needs.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// HandleDeleteTask removes the booking. A booking that is already gone counts as done.
func HandleDeleteTask(repo Deleter, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := parsePayload(task)
		if err != nil {
			logger.Error("invalid cleanup task", zap.Error(err))
			return err
		}

		if err := repo.Delete(ctx, p.EventID); err != nil {
			if errors.Is(err, booking.ErrNotFound) {
				logger.Info("booking already removed", zap.String("booking_id", p.EventID))
				return nil
			}
			logger.Warn("cleanup delete failed", zap.String("booking_id", p.EventID), zap.Error(err))
			return fmt.Errorf("delete booking %s: %w", p.EventID, err)
		}

		logger.Info("booking removed by cleanup", zap.String("booking_id", p.EventID))
		return nil
	}
}

func NewServeMux(repo Deleter, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeleteBooking, HandleDeleteTask(repo, logger))
	return mux
}

type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Queue       string
	Concurrency int
}

// RunWorker processes cleanup tasks until ctx is cancelled.
func RunWorker(ctx context.Context, cfg WorkerConfig, repo Deleter, logger *zap.Logger) error {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      logger.Sugar(),
	})

	if err := srv.Start(NewServeMux(repo, logger)); err != nil {
		return fmt.Errorf("start cleanup worker: %w", err)
	}
	logger.Info("cleanup worker started", zap.String("queue", cfg.Queue))

	<-ctx.Done()
	srv.Shutdown()
	logger.Info("cleanup worker stopped")
	return nil
}
