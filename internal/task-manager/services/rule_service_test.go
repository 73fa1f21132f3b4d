package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"task-recurrence-service/internal/task-manager/db"
)

func TestRuleService_CreateSeedsFirstInstance(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	rule, first, err := h.rules.Create(ctx, "user-1", RuleInput{
		Title: "Invoice", Priority: db.PriorityHigh, Tags: []string{"finance"},
		Pattern: db.PatternMonthly, DayOfMonth: ptr(31), StartDate: ptr(day(2025, 1, 31)),
	})
	require.NoError(t, err)
	assert.True(t, rule.Active)
	assert.Equal(t, 1, rule.Interval)
	assert.Equal(t, "Invoice", rule.Template().Title)

	require.NotNil(t, first)
	assert.True(t, first.IsRecurringInstance)
	assert.Equal(t, rule.ID, *first.RecurringTaskID)
	assert.True(t, day(2025, 1, 31).Equal(*first.DueDate))
	assert.Equal(t, db.PriorityHigh, first.Priority)
	assert.Equal(t, []string{"finance"}, []string(first.Tags))
}

func TestRuleService_CreateSeedsOnFirstMatchingDay(t *testing.T) {
	// Tuesday 2025-01-07.
	h := newHarness(t, time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, weekly, err := h.rules.Create(ctx, "user-1", RuleInput{
		Title: "Gym", Pattern: db.PatternWeekly, DaysOfWeek: []int{0, 2},
	})
	require.NoError(t, err)
	assert.True(t, day(2025, 1, 8).Equal(*weekly.DueDate), "got %s", weekly.DueDate)

	_, monthly, err := h.rules.Create(ctx, "user-1", RuleInput{
		Title: "Rent", Pattern: db.PatternMonthly, DayOfMonth: ptr(1),
	})
	require.NoError(t, err)
	assert.True(t, day(2025, 2, 1).Equal(*monthly.DueDate), "got %s", monthly.DueDate)

	_, explicit, err := h.rules.Create(ctx, "user-1", RuleInput{
		Title: "Review", Pattern: db.PatternWeekly, DaysOfWeek: []int{4}, StartDate: ptr(day(2025, 1, 14)),
	})
	require.NoError(t, err)
	assert.True(t, day(2025, 1, 17).Equal(*explicit.DueDate), "got %s", explicit.DueDate)

	_, _, err = h.rules.Create(ctx, "user-1", RuleInput{
		Title: "Too late", Pattern: db.PatternMonthly, DayOfMonth: ptr(1), EndDate: ptr(day(2025, 1, 31)),
	})
	assert.True(t, errors.Is(err, ErrInvalidRule), "got %v", err)
}

func TestRuleService_CreateIsAtomic(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	require.NoError(t, h.db.Callback().Create().Before("gorm:create").Register("test:fail_tasks", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Name == "Task" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	rule, first, err := h.rules.Create(context.Background(), "user-1", RuleInput{Title: "Gym", Pattern: db.PatternDaily})
	require.Error(t, err)
	assert.Nil(t, rule)
	assert.Nil(t, first)

	var count int64
	require.NoError(t, h.db.Model(&db.RecurringTask{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, h.sender.taskEvents(t))
}

func TestRuleService_CreateValidation(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	tests := []struct {
		name string
		in   RuleInput
	}{
		{"unknown pattern", RuleInput{Title: "x", Pattern: "yearly"}},
		{"negative interval", RuleInput{Title: "x", Pattern: db.PatternDaily, Interval: -1}},
		{"missing title", RuleInput{Pattern: db.PatternDaily}},
		{"weekday out of range", RuleInput{Title: "x", Pattern: db.PatternWeekly, DaysOfWeek: []int{9}}},
		{"days on daily rule", RuleInput{Title: "x", Pattern: db.PatternDaily, DaysOfWeek: []int{1}}},
		{"day of month on weekly rule", RuleInput{Title: "x", Pattern: db.PatternWeekly, DayOfMonth: ptr(3)}},
		{"day of month zero", RuleInput{Title: "x", Pattern: db.PatternMonthly, DayOfMonth: ptr(0)}},
		{"end before start", RuleInput{Title: "x", Pattern: db.PatternDaily, EndDate: ptr(day(2025, 1, 1))}},
		{"bad due time", RuleInput{Title: "x", Pattern: db.PatternDaily, DueTime: ptr("7pm")}},
		{"due time with seconds", RuleInput{Title: "x", Pattern: db.PatternDaily, DueTime: ptr("18:00:00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.rules.Create(context.Background(), "user-1", tt.in)
			assert.True(t, errors.Is(err, ErrInvalidRule), "got %v", err)
		})
	}
	var count int64
	h.db.Model(&db.RecurringTask{}).Count(&count)
	assert.Zero(t, count)
}

func TestRuleService_ListUpdateDeactivate(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	older, _, err := h.rules.Create(ctx, "user-1", RuleInput{Title: "old", Pattern: db.PatternDaily})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	newer, _, err := h.rules.Create(ctx, "user-1", RuleInput{Title: "new", Pattern: db.PatternWeekly, DaysOfWeek: []int{4}})
	require.NoError(t, err)

	rules, err := h.rules.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, newer.ID, rules[0].ID)
	assert.Equal(t, older.ID, rules[1].ID)

	updated, err := h.rules.Update(ctx, "user-1", older.ID, RuleUpdateInput{
		Title: ptr("renamed"), Pattern: ptr(db.PatternMonthly), DayOfMonth: ptr(15), Interval: ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Template().Title)
	assert.Equal(t, 15, *updated.DayOfMonth)

	_, err = h.rules.Update(ctx, "user-1", older.ID, RuleUpdateInput{Interval: ptr(0)})
	assert.True(t, errors.Is(err, ErrInvalidRule))
	_, err = h.rules.Update(ctx, "user-2", older.ID, RuleUpdateInput{Title: ptr("hijack")})
	assert.True(t, errors.Is(err, ErrForbidden))

	require.NoError(t, h.rules.Deactivate(ctx, "user-1", newer.ID))
	got, err := h.rules.Get(ctx, "user-1", newer.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.True(t, errors.Is(h.rules.Deactivate(ctx, "user-1", "missing"), ErrNotFound))
}

func TestRuleService_Preview(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	rule, _, err := h.rules.Create(ctx, "user-1", RuleInput{
		Title: "gym", Pattern: db.PatternWeekly, DaysOfWeek: []int{0, 2}, EndDate: ptr(day(2025, 1, 20)),
	})
	require.NoError(t, err)

	dates, err := h.rules.Preview(ctx, "user-1", rule.ID, day(2025, 1, 6), 10)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 8), day(2025, 1, 13), day(2025, 1, 15), day(2025, 1, 20)}, dates)
}
