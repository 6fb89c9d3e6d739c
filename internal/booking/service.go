package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/catalog"
	"github.com/nekogravitycat/massage-booking-backend/internal/lock"
	"github.com/nekogravitycat/massage-booking-backend/internal/notify"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/massage-booking-backend/internal/schedule"
)

type SlotsRequest struct {
	Day             time.Time
	ServiceType     string
	DurationMinutes int
}

type BookRequest struct {
	Name            string
	Slot            time.Time
	ServiceType     string
	DurationMinutes int
}

// CancelRequest cancels by EventID when set. Otherwise it falls back to the
// legacy name + slot match, which is kept only for older clients.
type CancelRequest struct {
	EventID     string
	Name        string
	Slot        time.Time
	ServiceType string
}

// CleanupScheduler removes a booking automatically at a later time.
type CleanupScheduler interface {
	ScheduleDeletion(ctx context.Context, bookingID string, at time.Time) error
	CancelDeletion(ctx context.Context, bookingID string) error
}

type Service interface {
	Slots(ctx context.Context, req SlotsRequest) ([]time.Time, error)
	Book(ctx context.Context, req BookRequest) (*Booking, error)
	Cancel(ctx context.Context, req CancelRequest) (*Booking, error)
	// Upcoming lists bookings from now to the end of the horizon.
	Upcoming(ctx context.Context) ([]*Booking, error)
	Rules() schedule.Rules
	Catalog() *catalog.Catalog
}

type Options struct {
	Rules           schedule.Rules
	Catalog         *catalog.Catalog
	DefaultDuration time.Duration // empty service type and no duration, when the catalog has no catalog.DefaultKey entry
	MatchTolerance  time.Duration // legacy cancel: max distance between record start and requested slot
	Locker          lock.Locker
	Notifier        *notify.Dispatcher
	Cleanup         CleanupScheduler // nil disables self-expiring bookings
	Clock           func() time.Time
	Logger          *zap.Logger
}

type service struct {
	repo            Repository
	rules           schedule.Rules
	catalog         *catalog.Catalog
	defaultDuration time.Duration
	matchTolerance  time.Duration
	locker          lock.Locker
	notifier        *notify.Dispatcher
	cleanup         CleanupScheduler
	now             func() time.Time
	logger          *zap.Logger
}

func NewService(repo Repository, opts Options) Service {
	s := &service{
		repo:            repo,
		rules:           opts.Rules,
		catalog:         opts.Catalog,
		defaultDuration: opts.DefaultDuration,
		matchTolerance:  opts.MatchTolerance,
		locker:          opts.Locker,
		notifier:        opts.Notifier,
		cleanup:         opts.Cleanup,
		now:             opts.Clock,
		logger:          opts.Logger,
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.defaultDuration <= 0 {
		s.defaultDuration = time.Hour
	}
	if s.matchTolerance <= 0 {
		s.matchTolerance = time.Minute
	}
	if s.locker == nil {
		s.locker = lock.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = notify.NewDispatcher(notify.Nop{}, 0, s.logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Rules() schedule.Rules { return s.rules }

func (s *service) Catalog() *catalog.Catalog { return s.catalog }

// resolveService picks the catalog entry and session length for a request.
// An explicit duration wins; otherwise the catalog duration. An empty type
// resolves to catalog.DefaultKey, so the default duration only applies to
// catalogs without that entry.
func (s *service) resolveService(serviceType string, durationMinutes int) (catalog.Service, time.Duration, error) {
	if durationMinutes < 0 {
		return catalog.Service{}, 0, ErrInvalidDuration
	}

	svc, known := s.catalog.Lookup(serviceType)
	var d time.Duration
	switch {
	case durationMinutes > 0:
		d = time.Duration(durationMinutes) * time.Minute
	case known:
		d = time.Duration(svc.DurationMinutes) * time.Minute
	case strings.TrimSpace(serviceType) == "":
		d = s.defaultDuration
	default:
		return catalog.Service{}, 0, ErrUnknownService
	}

	day := s.rules.StartOfDay(s.now())
	if d > s.rules.Close.On(day).Sub(s.rules.Open.On(day)) {
		return catalog.Service{}, 0, ErrInvalidDuration
	}

	if !known {
		name := strings.TrimSpace(serviceType)
		if name == "" {
			name = "Massage"
		}
		svc = catalog.Service{Key: strings.ToLower(name), Name: name}
	}
	svc.DurationMinutes = int(d / time.Minute)
	return svc, d, nil
}

func (s *service) Slots(ctx context.Context, req SlotsRequest) ([]time.Time, error) {
	if req.Day.IsZero() {
		return nil, ErrInvalidDay
	}
	_, d, err := s.resolveService(req.ServiceType, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !s.rules.InHorizon(req.Day, now) {
		return []time.Time{}, nil
	}

	window := s.rules.DayWindow(req.Day)
	existing, err := s.repo.List(ctx, window.Start, window.End)
	if err != nil {
		return nil, apperror.WrapAs(ErrUpstreamUnavailable, err)
	}

	slots := s.rules.Available(req.Day, d, now, intervals(existing))
	if slots == nil {
		slots = []time.Time{}
	}
	return slots, nil
}

func checkError(err error) error {
	switch {
	case errors.Is(err, schedule.ErrLeadTime):
		return ErrLeadTimeViolation
	case errors.Is(err, schedule.ErrHorizon):
		return ErrHorizonViolation
	case errors.Is(err, schedule.ErrOutsideHours):
		return ErrOutsideBusinessHours
	}
	return err
}

func lockKey(day time.Time) string {
	return "booking:day:" + day.Format("2006-01-02")
}

func (s *service) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	// 1. Validate before touching the calendar
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if req.Slot.IsZero() {
		return nil, ErrInvalidSlot
	}
	svc, d, err := s.resolveService(req.ServiceType, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	start := req.Slot.In(s.rules.Location)
	if err := s.rules.Check(start, d, s.now()); err != nil {
		return nil, checkError(err)
	}

	b := &Booking{
		RequesterName:   name,
		ServiceType:     svc.Key,
		ServiceName:     svc.Name,
		DurationMinutes: svc.DurationMinutes,
		Price:           svc.Price,
		Start:           start,
		End:             start.Add(d),
		BufferMinutes:   int(s.rules.Buffer / time.Minute),
		Summary:         summaryFor(svc.Name, name),
	}
	b.Description = descriptionFor(b, svc.PriceLabel())

	if err := s.commit(ctx, b); err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			s.fireError(b.RequesterName, b.Start, "booking failed: calendar unavailable")
		}
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("service", b.ServiceType),
		zap.Time("start", b.Start),
	)

	s.notifier.Fire(notify.Event{
		Kind:        notify.KindBooked,
		BookingID:   b.ID,
		Name:        b.RequesterName,
		ServiceName: b.ServiceName,
		Slot:        b.Start,
	})

	if s.cleanup != nil {
		if err := s.cleanup.ScheduleDeletion(ctx, b.ID, b.Start); err != nil {
			s.logger.Warn("schedule booking cleanup failed", zap.String("booking_id", b.ID), zap.Error(err))
		}
	}

	return b, nil
}

// commit re-reads the day inside the per-day lock, re-checks overlap and inserts.
func (s *service) commit(ctx context.Context, b *Booking) error {
	window := s.rules.DayWindow(b.Start)

	unlock, err := s.locker.Lock(ctx, lockKey(window.Start))
	if err != nil {
		return apperror.WrapAs(ErrUpstreamUnavailable, err)
	}
	defer unlock()

	existing, err := s.repo.List(ctx, window.Start, window.End)
	if err != nil {
		return apperror.WrapAs(ErrUpstreamUnavailable, err)
	}

	busy := s.rules.Busy(intervals(existing))
	if schedule.Conflicts(s.rules.Blocked(b.Interval()), busy) {
		return ErrSlotConflict
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return ErrSlotConflict
		}
		return apperror.WrapAs(ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, req CancelRequest) (*Booking, error) {
	var (
		b   *Booking
		err error
	)
	if id := strings.TrimSpace(req.EventID); id != "" {
		b, err = s.cancelByID(ctx, id)
	} else {
		b, err = s.cancelByMatch(ctx, req)
	}
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			s.fireError(req.Name, req.Slot, "cancellation failed: calendar unavailable")
		}
		return nil, err
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", b.ID), zap.Time("start", b.Start))

	s.notifier.Fire(notify.Event{
		Kind:        notify.KindCancelled,
		BookingID:   b.ID,
		Name:        b.RequesterName,
		ServiceName: b.ServiceName,
		Slot:        b.Start,
	})

	if s.cleanup != nil {
		if err := s.cleanup.CancelDeletion(ctx, b.ID); err != nil {
			s.logger.Warn("remove booking cleanup failed", zap.String("booking_id", b.ID), zap.Error(err))
		}
	}
	return b, nil
}

func (s *service) cancelByID(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperror.WrapAs(ErrUpstreamUnavailable, err)
	}
	if err := s.delete(ctx, id); err != nil {
		return nil, err
	}
	return b, nil
}

// cancelByMatch finds the single booking that starts within the tolerance of
// req.Slot and whose text contains req.Name. Substring matching can confuse
// requesters whose names contain one another, so more than one hit is refused.
func (s *service) cancelByMatch(ctx context.Context, req CancelRequest) (*Booking, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if req.Slot.IsZero() {
		return nil, ErrInvalidSlot
	}

	window := s.rules.DayWindow(req.Slot)
	existing, err := s.repo.List(ctx, window.Start, window.End)
	if err != nil {
		return nil, apperror.WrapAs(ErrUpstreamUnavailable, err)
	}

	var matches []*Booking
	for _, b := range existing {
		diff := b.Start.Sub(req.Slot)
		if diff < 0 {
			diff = -diff
		}
		if diff < s.matchTolerance && b.MatchesName(req.Name) {
			matches = append(matches, b)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		return nil, ErrAmbiguousMatch
	}

	s.logger.Warn("booking cancelled by name match", zap.String("booking_id", matches[0].ID))
	if err := s.delete(ctx, matches[0].ID); err != nil {
		return nil, err
	}
	return matches[0], nil
}

func (s *service) delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return apperror.WrapAs(ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *service) Upcoming(ctx context.Context) ([]*Booking, error) {
	now := s.now()
	until := s.rules.StartOfDay(now).AddDate(0, 0, s.rules.HorizonDays+1)

	// List matches on the blocked range, so sessions that already ended but
	// are still inside their buffer come back too.
	bookings, err := s.repo.List(ctx, now, until)
	if err != nil {
		return nil, apperror.WrapAs(ErrUpstreamUnavailable, err)
	}
	upcoming := bookings[:0]
	for _, b := range bookings {
		if b.End.After(now) {
			upcoming = append(upcoming, b)
		}
	}
	return upcoming, nil
}

func (s *service) fireError(name string, slot time.Time, reason string) {
	s.notifier.Fire(notify.Event{
		Kind:   notify.KindError,
		Name:   name,
		Slot:   slot,
		Reason: reason,
	})
}
