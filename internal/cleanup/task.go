// Package cleanup removes bookings from the store at a later time through asynq.
package cleanup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeDeleteBooking = "booking:delete"
	DefaultQueue      = "default"
	maxRetry          = 5
)

type DeletePayload struct {
	EventID string `json:"eventId"`
}

// TaskID is deterministic so a booking has at most one pending deletion.
func TaskID(eventID string) string {
	return "delete:" + eventID
}

func NewDeleteTask(eventID string, at time.Time, queue string) (*asynq.Task, []asynq.Option, error) {
	if eventID == "" {
		return nil, nil, errors.New("event id is required")
	}
	b, err := json.Marshal(DeletePayload{EventID: eventID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeDeleteBooking, b)
	opts := []asynq.Option{
		asynq.ProcessAt(at),
		asynq.TaskID(TaskID(eventID)),
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
	}
	return task, opts, nil
}

func parsePayload(task *asynq.Task) (DeletePayload, error) {
	var p DeletePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.EventID == "" {
		return p, fmt.Errorf("payload has no eventId: %w", asynq.SkipRetry)
	}
	return p, nil
}
