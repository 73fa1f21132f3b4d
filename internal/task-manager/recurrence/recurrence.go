// Package recurrence computes the due date of the next instance of a
// recurring task. All functions are pure.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Pattern names a recurrence cadence.
type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
)

// maxScanDays bounds the day-by-day weekly search.
const maxScanDays = 400

var (
	// ErrUnknownPattern means a rule with an unsupported pattern got past validation.
	ErrUnknownPattern = errors.New("unknown recurrence pattern")
	ErrInvalidRule    = errors.New("invalid recurrence rule")
)

// Rule is the calculator's view of a recurring task rule.
type Rule struct {
	Pattern Pattern
	// Interval is the number of pattern units between occurrences; values below 1 count as 1.
	Interval int
	// DaysOfWeek uses 0=Monday ... 6=Sunday. Only read for Weekly.
	DaysOfWeek []int
	// DayOfMonth is 1..31, 0 means the day of the from date. Only read for Monthly.
	DayOfMonth int
}

// ValidatePattern reports whether p is a supported pattern.
func ValidatePattern(p string) error {
	switch Pattern(p) {
	case Daily, Weekly, Monthly:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownPattern, p)
}

// Validate checks a rule before it is stored.
func (r Rule) Validate() error {
	if err := ValidatePattern(string(r.Pattern)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1", ErrInvalidRule)
	}
	seen := make(map[int]bool, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day of week %d out of range 0-6", ErrInvalidRule, d)
		}
		if seen[d] {
			return fmt.Errorf("%w: duplicate day of week %d", ErrInvalidRule, d)
		}
		seen[d] = true
	}
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d out of range 1-31", ErrInvalidRule, r.DayOfMonth)
	}
	return nil
}

// NextOccurrence returns the first date strictly after from on which the
// rule fires. Only the calendar date of from is used; the result is midnight
// UTC.
func NextOccurrence(rule Rule, from time.Time) (time.Time, error) {
	from = dateOf(from)
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	switch rule.Pattern {
	case Daily:
		return from.AddDate(0, 0, interval), nil
	case Weekly:
		if len(rule.DaysOfWeek) == 0 {
			return from.AddDate(0, 0, 7*interval), nil
		}
		return scanWeekdays(from, 1, interval, rule.DaysOfWeek), nil
	case Monthly:
		day := rule.DayOfMonth
		if day == 0 {
			day = from.Day()
		}
		return addMonthsClamped(from, interval, day), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPattern, rule.Pattern)
	}
}

// FirstOccurrence returns the first date on or after start on which the rule
// fires. It seeds the first instance of a new series; the weeks of a weekly
// rule are counted from start's week.
func FirstOccurrence(rule Rule, start time.Time) (time.Time, error) {
	start = dateOf(start)
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	switch rule.Pattern {
	case Daily:
		return start, nil
	case Weekly:
		if len(rule.DaysOfWeek) == 0 {
			return start, nil
		}
		return scanWeekdays(start, 0, interval, rule.DaysOfWeek), nil
	case Monthly:
		if rule.DayOfMonth == 0 {
			return start, nil
		}
		this := addMonthsClamped(start, 0, rule.DayOfMonth)
		if !this.Before(start) {
			return this, nil
		}
		return addMonthsClamped(start, 1, rule.DayOfMonth), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPattern, rule.Pattern)
	}
}

// scanWeekdays walks forward from from+first days looking for a wanted
// weekday in a week that is a multiple of interval weeks after from's week.
func scanWeekdays(from time.Time, first, interval int, days []int) time.Time {
	wanted := make(map[int]bool, len(days))
	for _, d := range days {
		wanted[d] = true
	}
	anchor := weekStart(from)
	for i := first; i <= maxScanDays; i++ {
		candidate := from.AddDate(0, 0, i)
		if !wanted[Weekday(candidate)] {
			continue
		}
		weeks := int(weekStart(candidate).Sub(anchor).Hours()) / (24 * 7)
		if weeks%interval == 0 {
			return candidate
		}
	}
	return from.AddDate(0, 0, 7*interval)
}

// Weekday maps t's weekday to 0=Monday ... 6=Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -Weekday(t))
}

func addMonthsClamped(from time.Time, months, day int) time.Time {
	total := int(from.Month()) - 1 + months
	year := from.Year() + total/12
	month := time.Month(total%12 + 1)
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
