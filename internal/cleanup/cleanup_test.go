package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	seen  map[string]bool
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	var id string
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id = o.Value().(string)
		}
	}
	if f.seen[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.seen[id] = true
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: id}, nil
}

type fakeRemover struct {
	removed []string
	err     error
}

func (f *fakeRemover) DeleteTask(queue, id string) error {
	f.removed = append(f.removed, queue+"/"+id)
	return f.err
}

type fakeDeleter struct {
	ids []string
	err error
}

func (f *fakeDeleter) Delete(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return f.err
}

func TestNewDeleteTask(t *testing.T) {
	at := time.Date(2026, 10, 21, 11, 0, 0, 0, time.UTC)
	task, opts, err := NewDeleteTask("evt1", at, "cleanup")
	require.NoError(t, err)

	assert.Equal(t, TypeDeleteBooking, task.Type())
	assert.JSONEq(t, `{"eventId":"evt1"}`, string(task.Payload()))

	got := map[asynq.OptionType]any{}
	for _, o := range opts {
		got[o.Type()] = o.Value()
	}
	assert.Equal(t, at, got[asynq.ProcessAtOpt])
	assert.Equal(t, "delete:evt1", got[asynq.TaskIDOpt])
	assert.Equal(t, "cleanup", got[asynq.QueueOpt])

	_, _, err = NewDeleteTask("", at, "cleanup")
	assert.Error(t, err)
}

func TestSchedulerIsIdempotent(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := newScheduler(enq, &fakeRemover{}, "")

	at := time.Now().Add(time.Hour)
	require.NoError(t, s.ScheduleDeletion(context.Background(), "evt1", at))
	require.NoError(t, s.ScheduleDeletion(context.Background(), "evt1", at))
	assert.Len(t, enq.tasks, 1)

	enq.err = errors.New("redis down")
	assert.Error(t, s.ScheduleDeletion(context.Background(), "evt2", at))
}

func TestSchedulerCancelDeletion(t *testing.T) {
	rm := &fakeRemover{}
	s := newScheduler(&fakeEnqueuer{}, rm, "cleanup")

	require.NoError(t, s.CancelDeletion(context.Background(), "evt1"))
	assert.Equal(t, []string{"cleanup/delete:evt1"}, rm.removed)

	rm.err = asynq.ErrTaskNotFound
	assert.NoError(t, s.CancelDeletion(context.Background(), "evt1"))

	rm.err = errors.New("redis down")
	assert.Error(t, s.CancelDeletion(context.Background(), "evt1"))
}

func TestHandleDeleteTask(t *testing.T) {
	logger := zap.NewNop()

	t.Run("deletes booking", func(t *testing.T) {
		repo := &fakeDeleter{}
		task, _, err := NewDeleteTask("evt1", time.Now(), DefaultQueue)
		require.NoError(t, err)

		require.NoError(t, HandleDeleteTask(repo, logger)(context.Background(), task))
		assert.Equal(t, []string{"evt1"}, repo.ids)
	})

	t.Run("already removed counts as done", func(t *testing.T) {
		repo := &fakeDeleter{err: booking.ErrNotFound}
		task, _, err := NewDeleteTask("evt1", time.Now(), DefaultQueue)
		require.NoError(t, err)

		assert.NoError(t, HandleDeleteTask(repo, logger)(context.Background(), task))
	})

	t.Run("upstream failure retries", func(t *testing.T) {
		repo := &fakeDeleter{err: errors.New("quota")}
		task, _, err := NewDeleteTask("evt1", time.Now(), DefaultQueue)
		require.NoError(t, err)

		err = HandleDeleteTask(repo, logger)(context.Background(), task)
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		repo := &fakeDeleter{}
		task := asynq.NewTask(TypeDeleteBooking, []byte("not json"))

		err := HandleDeleteTask(repo, logger)(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, repo.ids)
	})
}
