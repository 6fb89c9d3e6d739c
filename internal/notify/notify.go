package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies an administrator notification.
type Kind string

const (
	KindBooked    Kind = "booked"
	KindCancelled Kind = "cancelled"
	KindError     Kind = "error"
)

// Event is what the administrator is told about.
type Event struct {
	Kind        Kind      `json:"kind"`
	BookingID   string    `json:"bookingId,omitempty"`
	Name        string    `json:"name"`
	ServiceName string    `json:"serviceName,omitempty"`
	Slot        time.Time `json:"slot"`
	Reason      string    `json:"reason,omitempty"`
}

// Sink delivers an event somewhere. Implementations should honour ctx.
type Sink interface {
	Notify(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher delivers events in the background with a per-event timeout.
// A failing sink is logged and otherwise ignored.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if sink == nil {
		sink = Nop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sink: sink, timeout: timeout, logger: logger}
}

// Fire sends e without blocking the caller.
func (d *Dispatcher) Fire(e Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sink.Notify(ctx, e); err != nil {
			d.logger.Warn("notification failed",
				zap.String("kind", string(e.Kind)),
				zap.String("booking_id", e.BookingID),
				zap.Time("slot", e.Slot),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every fired event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
