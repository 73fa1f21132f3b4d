// Package reminders classifies a due moment relative to now.
package reminders

import (
	"fmt"
	"time"
)

// DueSoonWindow is the lookahead in which a task counts as due soon.
const DueSoonWindow = 30 * time.Minute

// Window is the classification of a due moment.
type Window string

const (
	NotDue  Window = "not_due"
	DueSoon Window = "due_soon"
	Overdue Window = "overdue"
)

// Classify returns DueSoon when now <= dueAt <= now+30m, Overdue when
// dueAt < now, and NotDue otherwise.
func Classify(now, dueAt time.Time) Window {
	switch {
	case dueAt.Before(now):
		return Overdue
	case !dueAt.After(now.Add(DueSoonWindow)):
		return DueSoon
	default:
		return NotDue
	}
}

// DueAt combines a calendar date with an optional "HH:MM" time of day in UTC.
// A nil or empty time means midnight.
func DueAt(dueDate time.Time, dueTime *string) (time.Time, error) {
	y, m, d := dueDate.Date()
	at := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if dueTime == nil || *dueTime == "" {
		return at, nil
	}
	clock, err := ParseClock(*dueTime)
	if err != nil {
		return time.Time{}, err
	}
	return at.Add(clock), nil
}

// ParseClock parses "HH:MM" (or "HH:MM:SS") into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	layout := "15:04"
	if len(s) == len("15:04:05") {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}
