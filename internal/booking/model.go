package booking

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/massage-booking-backend/internal/schedule"
)

var (
	ErrNotFound             = apperror.New(http.StatusNotFound, "booking not found")
	ErrSlotConflict         = apperror.New(http.StatusConflict, "time slot already booked")
	ErrAmbiguousMatch       = apperror.New(http.StatusConflict, "several bookings match; cancel by eventId")
	ErrNameRequired         = apperror.New(http.StatusBadRequest, "name is required")
	ErrInvalidSlot          = apperror.New(http.StatusBadRequest, "invalid slot time")
	ErrInvalidDay           = apperror.New(http.StatusBadRequest, "invalid date format")
	ErrUnknownService       = apperror.New(http.StatusBadRequest, "unknown service type")
	ErrInvalidDuration      = apperror.New(http.StatusBadRequest, "invalid duration")
	ErrLeadTimeViolation    = apperror.New(http.StatusBadRequest, "slot is too soon")
	ErrHorizonViolation     = apperror.New(http.StatusBadRequest, "slot is too far in the future")
	ErrOutsideBusinessHours = apperror.New(http.StatusBadRequest, "slot is outside business hours")
	ErrUpstreamUnavailable  = apperror.New(http.StatusServiceUnavailable, "calendar unavailable, try again later")
)

// Booking is one reserved session. End is the end of the session itself;
// the stored record keeps the slot blocked until End plus BufferMinutes.
type Booking struct {
	ID              string
	RequesterName   string
	ServiceType     string
	ServiceName     string
	DurationMinutes int
	Price           int
	Start           time.Time
	End             time.Time
	BufferMinutes   int
	Summary         string
	Description     string
	CreatedAt       time.Time
}

// Interval is the session itself, without buffer.
func (b *Booking) Interval() schedule.Interval {
	return schedule.Interval{Start: b.Start, End: b.End}
}

// BlockedUntil is the end of the record as written to the store.
func (b *Booking) BlockedUntil() time.Time {
	return b.End.Add(time.Duration(b.BufferMinutes) * time.Minute)
}

// DisplayText is what the legacy name match searches.
func (b *Booking) DisplayText() string {
	return strings.Join([]string{b.Summary, b.Description, b.RequesterName}, "\n")
}

// MatchesName reports a case-insensitive substring match of name against DisplayText.
// Short names can match other requesters; callers treat this as best effort.
func (b *Booking) MatchesName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(b.DisplayText()), name)
}

func summaryFor(serviceName, requester string) string {
	return fmt.Sprintf("%s - %s", serviceName, requester)
}

func descriptionFor(b *Booking, priceLabel string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Client: %s\n", b.RequesterName)
	fmt.Fprintf(&sb, "Service: %s\n", b.ServiceName)
	fmt.Fprintf(&sb, "Duration: %d min", b.DurationMinutes)
	if priceLabel != "" {
		fmt.Fprintf(&sb, "\nPrice: %s", priceLabel)
	}
	return sb.String()
}

func intervals(bookings []*Booking) []schedule.Interval {
	out := make([]schedule.Interval, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.Interval())
	}
	return out
}
