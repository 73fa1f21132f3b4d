package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		from time.Time
		want time.Time
	}{
		{"daily interval 1", Rule{Pattern: Daily, Interval: 1}, date(2025, 3, 10), date(2025, 3, 11)},
		{"daily interval 3 across month", Rule{Pattern: Daily, Interval: 3}, date(2025, 1, 30), date(2025, 2, 2)},
		{"daily zero interval treated as 1", Rule{Pattern: Daily}, date(2025, 12, 31), date(2026, 1, 1)},
		{"weekly without days", Rule{Pattern: Weekly, Interval: 2}, date(2025, 1, 6), date(2025, 1, 20)},
		{"weekly mon wed from monday", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{0, 2}}, date(2025, 1, 6), date(2025, 1, 8)},
		{"weekly mon wed from wednesday", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{0, 2}}, date(2025, 1, 8), date(2025, 1, 13)},
		{"weekly tue thu from monday", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{1, 3}}, date(2025, 1, 6), date(2025, 1, 7)},
		{"biweekly monday from monday", Rule{Pattern: Weekly, Interval: 2, DaysOfWeek: []int{0}}, date(2025, 1, 6), date(2025, 1, 20)},
		{"biweekly mon fri from friday", Rule{Pattern: Weekly, Interval: 2, DaysOfWeek: []int{0, 4}}, date(2025, 1, 10), date(2025, 1, 20)},
		{"weekly across year end", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{3}}, date(2025, 12, 30), date(2026, 1, 1)},
		{"biweekly across year end", Rule{Pattern: Weekly, Interval: 2, DaysOfWeek: []int{0}}, date(2024, 12, 23), date(2025, 1, 6)},
		{"monthly same day", Rule{Pattern: Monthly, Interval: 1}, date(2025, 3, 15), date(2025, 4, 15)},
		{"monthly jan 31 to feb 28", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 31}, date(2025, 1, 31), date(2025, 2, 28)},
		{"monthly jan 31 to feb 29 leap", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 31}, date(2024, 1, 31), date(2024, 2, 29)},
		{"monthly clamp then restore", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 31}, date(2025, 2, 28), date(2025, 3, 31)},
		{"monthly year carry", Rule{Pattern: Monthly, Interval: 3}, date(2025, 11, 5), date(2026, 2, 5)},
		{"monthly interval 12", Rule{Pattern: Monthly, Interval: 12, DayOfMonth: 29}, date(2024, 2, 29), date(2025, 2, 28)},
		{"monthly explicit day earlier than from", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 1}, date(2025, 5, 20), date(2025, 6, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.rule, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrence_AlwaysAfterFrom(t *testing.T) {
	rules := []Rule{
		{Pattern: Daily, Interval: 1},
		{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{6}},
		{Pattern: Weekly, Interval: 3, DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6}},
		{Pattern: Monthly, Interval: 1, DayOfMonth: 31},
	}
	from := date(2024, 1, 1)
	for i := 0; i < 800; i++ {
		day := from.AddDate(0, 0, i)
		for _, r := range rules {
			got, err := NextOccurrence(r, day)
			require.NoError(t, err)
			assert.True(t, got.After(day), "rule %+v from %s gave %s", r, day, got)
		}
	}
}

func TestNextOccurrence_WeeklyScanIsBounded(t *testing.T) {
	// No weekday 9 exists, so the scan runs out and falls back to whole weeks.
	rule := Rule{Pattern: Weekly, Interval: 2, DaysOfWeek: []int{9}}
	from := date(2025, 1, 8)

	done := make(chan time.Time, 1)
	go func() {
		got, err := NextOccurrence(rule, from)
		assert.NoError(t, err)
		done <- got
	}()
	select {
	case got := <-done:
		assert.Equal(t, from.AddDate(0, 0, 14), got)
	case <-time.After(5 * time.Second):
		t.Fatal("weekly scan did not terminate")
	}
}

func TestFirstOccurrence(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		start time.Time
		want  time.Time
	}{
		{"daily starts on start", Rule{Pattern: Daily, Interval: 3}, date(2025, 1, 7), date(2025, 1, 7)},
		{"weekly without days starts on start", Rule{Pattern: Weekly, Interval: 1}, date(2025, 1, 7), date(2025, 1, 7)},
		{"weekly start matches", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{0, 2}}, date(2025, 1, 8), date(2025, 1, 8)},
		{"weekly mon wed from tuesday", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{0, 2}}, date(2025, 1, 7), date(2025, 1, 8)},
		{"weekly monday from tuesday", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{0}}, date(2025, 1, 7), date(2025, 1, 13)},
		{"biweekly monday from tuesday", Rule{Pattern: Weekly, Interval: 2, DaysOfWeek: []int{0}}, date(2025, 1, 7), date(2025, 1, 20)},
		{"monthly without day starts on start", Rule{Pattern: Monthly, Interval: 1}, date(2025, 1, 7), date(2025, 1, 7)},
		{"monthly day 1 from jan 7", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 1}, date(2025, 1, 7), date(2025, 2, 1)},
		{"monthly day 15 later this month", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 15}, date(2025, 1, 7), date(2025, 1, 15)},
		{"monthly day 31 clamps in february", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 31}, date(2025, 2, 10), date(2025, 2, 28)},
		{"monthly day 31 on jan 31", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 31}, date(2025, 1, 31), date(2025, 1, 31)},
		{"monthly day 5 across year end", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 5}, date(2025, 12, 20), date(2026, 1, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstOccurrence(tt.rule, tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FirstOccurrence(Rule{Pattern: "yearly"}, date(2025, 1, 1))
	assert.True(t, errors.Is(err, ErrUnknownPattern))
}

func TestNextOccurrence_IgnoresTimeOfDay(t *testing.T) {
	got, err := NextOccurrence(Rule{Pattern: Daily, Interval: 1}, time.Date(2025, 3, 10, 22, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 3, 11), got)
}

func TestNextOccurrence_UnknownPattern(t *testing.T) {
	_, err := NextOccurrence(Rule{Pattern: "yearly", Interval: 1}, date(2025, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPattern))
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid daily", Rule{Pattern: Daily, Interval: 1}, false},
		{"valid weekly", Rule{Pattern: Weekly, Interval: 2, DaysOfWeek: []int{0, 6}}, false},
		{"valid monthly", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 31}, false},
		{"unknown pattern", Rule{Pattern: "hourly", Interval: 1}, true},
		{"zero interval", Rule{Pattern: Daily}, true},
		{"weekday out of range", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{7}}, true},
		{"duplicate weekday", Rule{Pattern: Weekly, Interval: 1, DaysOfWeek: []int{1, 1}}, true},
		{"day of month out of range", Rule{Pattern: Monthly, Interval: 1, DayOfMonth: 32}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidRule))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeekdayAndDaysInMonth(t *testing.T) {
	assert.Equal(t, 0, Weekday(date(2025, 1, 6)))
	assert.Equal(t, 6, Weekday(date(2025, 1, 12)))
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2100, time.February))
	assert.Equal(t, 31, DaysInMonth(2025, time.December))
}
