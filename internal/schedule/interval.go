package schedule

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant.
// An interval ending exactly when the other begins does not overlap it.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Extend returns a copy with End pushed out by d.
func (a Interval) Extend(d time.Duration) Interval {
	return Interval{Start: a.Start, End: a.End.Add(d)}
}

// In returns the interval with both ends expressed in loc.
func (a Interval) In(loc *time.Location) Interval {
	return Interval{Start: a.Start.In(loc), End: a.End.In(loc)}
}

// Conflicts reports whether candidate overlaps any of the busy intervals.
func Conflicts(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
