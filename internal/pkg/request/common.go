package request

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the wire format of a calendar day, e.g. 2026-04-10.
const DayLayout = "2006-01-02"

// naiveLayouts are accepted for timestamps that carry no zone; they are read as business-local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDay parses a YYYY-MM-DD string as midnight of that day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("day is required")
	}
	d, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return d, nil
}

// ParseSlot parses an ISO-8601 slot timestamp and returns it in loc.
// Timestamps with an offset or a Z suffix are converted; naive ones are taken as already local.
func ParseSlot(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("slot is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid slot %q: expected ISO-8601 timestamp", s)
}

// FormatSlot renders a slot start as an ISO-8601 local timestamp with offset.
func FormatSlot(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}
