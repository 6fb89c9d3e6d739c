// Package gcal stores bookings as events in a Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
)

// Keys of the private extended properties written on every event we create.
const (
	propSource          = "source"
	propRequesterName   = "requesterName"
	propServiceType     = "serviceType"
	propServiceName     = "serviceName"
	propDurationMinutes = "durationMinutes"
	propBufferMinutes   = "bufferMinutes"
	propPrice           = "price"

	sourceValue = "massage-booking"
)

const (
	DefaultColorID = "2"
	statusCanceled = "cancelled"
)

// DefaultReminders are popup alerts, in minutes before the start.
var DefaultReminders = []int64{60, 15}

type Config struct {
	CalendarID      string
	CredentialsFile string
	Location        *time.Location
	ColorID         string
	Reminders       []int64
}

type Repository struct {
	events     *calendar.EventsService
	calendarID string
	loc        *time.Location
	colorID    string
	reminders  []int64
}

// New connects to the Calendar API. Extra options are appended after the
// credentials, so tests can point the client at a local server.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Repository, error) {
	if cfg.CalendarID == "" {
		return nil, errors.New("calendar id is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ColorID == "" {
		cfg.ColorID = DefaultColorID
	}
	if cfg.Reminders == nil {
		cfg.Reminders = DefaultReminders
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(calendar.CalendarEventsScope),
		)
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	return &Repository{
		events:     svc.Events,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		colorID:    cfg.ColorID,
		reminders:  cfg.Reminders,
	}, nil
}

func (r *Repository) List(ctx context.Context, from, to time.Time) ([]*booking.Booking, error) {
	var out []*booking.Booking
	pageToken := ""
	for {
		call := r.events.List(r.calendarID).
			TimeMin(from.UTC().Format(time.RFC3339)).
			TimeMax(to.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list calendar events failed: %w", err)
		}

		for _, ev := range res.Items {
			if ev.Status == statusCanceled {
				continue
			}
			b, err := r.toBooking(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}

		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

func (r *Repository) Get(ctx context.Context, id string) (*booking.Booking, error) {
	if id == "" {
		return nil, booking.ErrNotFound
	}
	ev, err := r.events.Get(r.calendarID, id).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return nil, booking.ErrNotFound
		}
		return nil, fmt.Errorf("get calendar event failed: %w", err)
	}
	if ev.Status == statusCanceled {
		return nil, booking.ErrNotFound
	}
	return r.toBooking(ev)
}

func (r *Repository) Insert(ctx context.Context, b *booking.Booking) error {
	created, err := r.events.Insert(r.calendarID, r.toEvent(b)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert calendar event failed: %w", err)
	}
	b.ID = created.Id
	if t, err := time.Parse(time.RFC3339, created.Created); err == nil {
		b.CreatedAt = t
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return booking.ErrNotFound
	}
	if err := r.events.Delete(r.calendarID, id).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return booking.ErrNotFound
		}
		return fmt.Errorf("delete calendar event failed: %w", err)
	}
	return nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func (r *Repository) toEvent(b *booking.Booking) *calendar.Event {
	overrides := make([]*calendar.EventReminder, 0, len(r.reminders))
	for _, m := range r.reminders {
		overrides = append(overrides, &calendar.EventReminder{Method: "popup", Minutes: m})
	}

	return &calendar.Event{
		Summary:     b.Summary,
		Description: b.Description,
		Start:       r.dateTime(b.Start),
		End:         r.dateTime(b.BlockedUntil()),
		ColorId:     r.colorID,
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propSource:          sourceValue,
				propRequesterName:   b.RequesterName,
				propServiceType:     b.ServiceType,
				propServiceName:     b.ServiceName,
				propDurationMinutes: strconv.Itoa(b.DurationMinutes),
				propBufferMinutes:   strconv.Itoa(b.BufferMinutes),
				propPrice:           strconv.Itoa(b.Price),
			},
		},
	}
}

// dateTime sends UTC with the business zone name. Calendar only accepts IANA names.
func (r *Repository) dateTime(t time.Time) *calendar.EventDateTime {
	edt := &calendar.EventDateTime{DateTime: t.UTC().Format(time.RFC3339)}
	if name := r.loc.String(); strings.Contains(name, "/") {
		edt.TimeZone = name
	}
	return edt
}

// toBooking localizes an event. For our own events End is reduced by the
// recorded buffer; anything else is busy time exactly as it stands.
func (r *Repository) toBooking(ev *calendar.Event) (*booking.Booking, error) {
	start, end, err := r.eventBounds(ev)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.Id, err)
	}

	b := &booking.Booking{
		ID:          ev.Id,
		Start:       start,
		End:         end,
		Summary:     ev.Summary,
		Description: ev.Description,
	}
	if t, err := time.Parse(time.RFC3339, ev.Created); err == nil {
		b.CreatedAt = t
	}

	var props map[string]string
	if ev.ExtendedProperties != nil {
		props = ev.ExtendedProperties.Private
	}
	if props[propSource] != sourceValue {
		b.DurationMinutes = int(end.Sub(start) / time.Minute)
		return b, nil
	}

	b.RequesterName = props[propRequesterName]
	b.ServiceType = props[propServiceType]
	b.ServiceName = props[propServiceName]
	b.Price, _ = strconv.Atoi(props[propPrice])
	b.BufferMinutes, _ = strconv.Atoi(props[propBufferMinutes])
	if b.BufferMinutes > 0 {
		b.End = end.Add(-time.Duration(b.BufferMinutes) * time.Minute)
	}
	b.DurationMinutes = int(b.End.Sub(b.Start) / time.Minute)
	return b, nil
}

// eventBounds returns the event interval in the business zone. All-day events
// cover whole local days.
func (r *Repository) eventBounds(ev *calendar.Event) (time.Time, time.Time, error) {
	if ev.Start == nil || ev.End == nil {
		return time.Time{}, time.Time{}, errors.New("missing start or end")
	}

	if ev.Start.DateTime == "" {
		start, err := time.ParseInLocation("2006-01-02", ev.Start.Date, r.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02", ev.End.Date, r.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
		return start, end, nil
	}

	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	return start.In(r.loc), end.In(r.loc), nil
}

var _ booking.Repository = (*Repository)(nil)
