package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskRemover interface {
	DeleteTask(queue, id string) error
}

// Scheduler enqueues delayed deletions. It satisfies booking.CleanupScheduler.
type Scheduler struct {
	client    enqueuer
	inspector taskRemover
	queue     string
}

func NewScheduler(client *asynq.Client, inspector *asynq.Inspector, queue string) *Scheduler {
	return newScheduler(client, inspector, queue)
}

func newScheduler(client enqueuer, inspector taskRemover, queue string) *Scheduler {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Scheduler{client: client, inspector: inspector, queue: queue}
}

// ScheduleDeletion is idempotent per booking id.
func (s *Scheduler) ScheduleDeletion(ctx context.Context, eventID string, at time.Time) error {
	task, opts, err := NewDeleteTask(eventID, at, s.queue)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue booking deletion failed: %w", err)
	}
	return nil
}

// CancelDeletion drops the pending deletion, if any.
func (s *Scheduler) CancelDeletion(_ context.Context, eventID string) error {
	err := s.inspector.DeleteTask(s.queue, TaskID(eventID))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("remove booking deletion failed: %w", err)
}
