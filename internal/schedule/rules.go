package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrLeadTime     = errors.New("slot is within the minimum lead time")
	ErrHorizon      = errors.New("slot is beyond the booking horizon")
	ErrOutsideHours = errors.New("slot is outside business hours")
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns this wall-clock time on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// Rules are the business constraints every bookable slot must satisfy.
// All wall-clock comparisons happen in Location.
type Rules struct {
	Location    *time.Location
	Open        TimeOfDay     // first possible session start
	Close       TimeOfDay     // sessions must finish by this time
	Grid        time.Duration // spacing of candidate starts from Open
	LeadTime    time.Duration // candidates must start strictly after now+LeadTime
	HorizonDays int           // last bookable day is today+HorizonDays
	Buffer      time.Duration // idle time appended after each existing booking
}

// DefaultRules returns the standard schedule: 10:00-21:00, 20 minute grid,
// 4 hour lead time, 14 day horizon, 20 minute buffer.
func DefaultRules(loc *time.Location) Rules {
	if loc == nil {
		loc = time.UTC
	}
	return Rules{
		Location:    loc,
		Open:        TimeOfDay{Hour: 10},
		Close:       TimeOfDay{Hour: 21},
		Grid:        20 * time.Minute,
		LeadTime:    4 * time.Hour,
		HorizonDays: 14,
		Buffer:      20 * time.Minute,
	}
}

func (r Rules) Validate() error {
	switch {
	case r.Location == nil:
		return errors.New("rules: location is required")
	case r.Close.minutes() <= r.Open.minutes():
		return fmt.Errorf("rules: close %s must be after open %s", r.Close, r.Open)
	case r.Grid <= 0:
		return errors.New("rules: grid must be positive")
	case r.LeadTime < 0:
		return errors.New("rules: lead time must not be negative")
	case r.HorizonDays < 0:
		return errors.New("rules: horizon must not be negative")
	case r.Buffer < 0:
		return errors.New("rules: buffer must not be negative")
	}
	return nil
}

// StartOfDay returns local midnight of the calendar day containing t.
func (r Rules) StartOfDay(t time.Time) time.Time {
	t = t.In(r.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.Location)
}

// DayWindow is [midnight, next midnight) of the day containing t.
func (r Rules) DayWindow(t time.Time) Interval {
	start := r.StartOfDay(t)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// InHorizon reports whether day lies within [today, today+HorizonDays].
func (r Rules) InHorizon(day, now time.Time) bool {
	day = r.StartOfDay(day)
	today := r.StartOfDay(now)
	last := today.AddDate(0, 0, r.HorizonDays)
	return !day.Before(today) && !day.After(last)
}

// Candidates enumerates the grid of possible starts on day, from Open up to (not including) Close.
func (r Rules) Candidates(day time.Time) []time.Time {
	day = r.StartOfDay(day)
	open := r.Open.On(day)
	closeAt := r.Close.On(day)

	var out []time.Time
	for t := open; t.Before(closeAt); t = t.Add(r.Grid) {
		out = append(out, t)
	}
	return out
}

// Blocked is the time a session occupies on the calendar: [start, end+Buffer).
// Two sessions are compatible only when their blocked ranges do not overlap,
// which is the same rule the Postgres exclusion constraint enforces.
func (r Rules) Blocked(session Interval) Interval {
	return session.In(r.Location).Extend(r.Buffer)
}

// Busy converts booked intervals into busy intervals: localized, with Buffer appended to each end.
func (r Rules) Busy(booked []Interval) []Interval {
	busy := make([]Interval, 0, len(booked))
	for _, b := range booked {
		busy = append(busy, b.In(r.Location).Extend(r.Buffer))
	}
	return busy
}

// Available returns the ascending slot starts on day for a session of the given duration.
// It is a pure function of its inputs.
func (r Rules) Available(day time.Time, duration time.Duration, now time.Time, booked []Interval) []time.Time {
	if duration <= 0 || !r.InHorizon(day, now) {
		return nil
	}

	day = r.StartOfDay(day)
	earliest := now.In(r.Location).Add(r.LeadTime)
	closeAt := r.Close.On(day)
	busy := r.Busy(booked)

	var out []time.Time
	for _, c := range r.Candidates(day) {
		if !c.After(earliest) {
			continue
		}
		end := c.Add(duration)
		if end.After(closeAt) {
			// Candidates ascend, so every later one overflows too.
			break
		}
		if Conflicts(r.Blocked(Interval{Start: c, End: end}), busy) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Check validates a requested start against lead time, horizon and business hours.
// It does not look at existing bookings.
func (r Rules) Check(start time.Time, duration time.Duration, now time.Time) error {
	start = start.In(r.Location)
	if !start.After(now.In(r.Location).Add(r.LeadTime)) {
		return ErrLeadTime
	}
	if !r.InHorizon(start, now) {
		return ErrHorizon
	}
	day := r.StartOfDay(start)
	if start.Before(r.Open.On(day)) || !start.Before(r.Close.On(day)) || start.Add(duration).After(r.Close.On(day)) {
		return ErrOutsideHours
	}
	return nil
}
