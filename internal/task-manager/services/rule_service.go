package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/internal/task-manager/recurrence"
)

type RuleInput struct {
	Title       string
	Description string
	Priority    string
	Tags        []string
	Pattern     string
	Interval    int
	DaysOfWeek  []int
	DayOfMonth  *int
	StartDate   *time.Time
	EndDate     *time.Time
	DueTime     *string
}

// RuleUpdateInput changes only the fields that are set.
type RuleUpdateInput struct {
	Title       *string
	Description *string
	Priority    *string
	Tags        []string
	Pattern     *string
	Interval    *int
	DaysOfWeek  []int
	DayOfMonth  *int
	EndDate     *time.Time
}

// RuleService manages recurring task rules. Creating a rule also creates
// its first instance.
type RuleService struct {
	db     *gorm.DB
	tasks  *TaskService
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewRuleService(gormDB *gorm.DB, tasks *TaskService, clock clockwork.Clock, logger *zap.Logger) *RuleService {
	return &RuleService{db: gormDB, tasks: tasks, clock: clock, logger: logger}
}

func (s *RuleService) Create(ctx context.Context, userID string, in RuleInput) (*db.RecurringTask, *db.Task, error) {
	if in.Interval == 0 {
		in.Interval = 1
	}
	rule := &db.RecurringTask{
		UserID: userID,
		TaskTemplate: datatypes.NewJSONType(db.TaskTemplate{
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Priority:    in.Priority,
			Tags:        in.Tags,
		}),
		Pattern:    in.Pattern,
		Interval:   in.Interval,
		DaysOfWeek: datatypes.JSONSlice[int](in.DaysOfWeek),
		DayOfMonth: in.DayOfMonth,
		EndDate:    dateOnlyPtr(in.EndDate),
		Active:     true,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.validate(rule); err != nil {
		return nil, nil, err
	}

	start := db.DateOnly(s.clock.Now())
	if in.StartDate != nil {
		start = db.DateOnly(*in.StartDate)
	}
	first, err := recurrence.FirstOccurrence(RuleOf(rule), start)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if rule.EndDate != nil && rule.EndDate.Before(first) {
		return nil, nil, fmt.Errorf("%w: end date is before the first occurrence", ErrInvalidRule)
	}
	if err := validateClock(in.DueTime); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	tmpl := rule.Template()
	instance, err := s.tasks.build(userID, CreateTaskInput{
		Title:       tmpl.Title,
		Description: tmpl.Description,
		Priority:    tmpl.Priority,
		Tags:        tmpl.Tags,
		DueDate:     &first,
		DueTime:     in.DueTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return fmt.Errorf("failed to create recurring rule: %w", err)
		}
		instance.RecurringTaskID = &rule.ID
		instance.IsRecurringInstance = true
		if err := insertTask(tx, instance); err != nil {
			return fmt.Errorf("failed to create first instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Recurring rule created",
		zap.String("recurring_task_id", rule.ID),
		zap.String("pattern", rule.Pattern),
		zap.Int("interval", rule.Interval),
		zap.Time("first_due", first),
	)
	s.tasks.publish(ctx, events.EventTaskCreated, instance)
	return rule, instance, nil
}

func (s *RuleService) Get(ctx context.Context, userID, id string) (*db.RecurringTask, error) {
	var rule db.RecurringTask
	if err := s.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("recurring rule %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load recurring rule %s: %w", id, err)
	}
	if rule.UserID != userID {
		return nil, fmt.Errorf("recurring rule %s: %w", id, ErrForbidden)
	}
	return &rule, nil
}

// List returns the user's rules, newest first.
func (s *RuleService) List(ctx context.Context, userID string) ([]db.RecurringTask, error) {
	var rules []db.RecurringTask
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list recurring rules: %w", err)
	}
	return rules, nil
}

func (s *RuleService) Update(ctx context.Context, userID, id string, in RuleUpdateInput) (*db.RecurringTask, error) {
	rule, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	tmpl := rule.Template()
	if in.Title != nil {
		tmpl.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		tmpl.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		tmpl.Priority = *in.Priority
	}
	if in.Tags != nil {
		tmpl.Tags = in.Tags
	}
	rule.TaskTemplate = datatypes.NewJSONType(tmpl)
	if in.Pattern != nil {
		rule.Pattern = *in.Pattern
	}
	if in.Interval != nil {
		rule.Interval = *in.Interval
	}
	if in.DaysOfWeek != nil {
		rule.DaysOfWeek = datatypes.JSONSlice[int](in.DaysOfWeek)
	}
	if in.DayOfMonth != nil {
		rule.DayOfMonth = in.DayOfMonth
	}
	if in.EndDate != nil {
		rule.EndDate = dateOnlyPtr(in.EndDate)
	}
	// Leftovers from a previous pattern would fail validation.
	if rule.Pattern != db.PatternWeekly {
		rule.DaysOfWeek = nil
	}
	if rule.Pattern != db.PatternMonthly {
		rule.DayOfMonth = nil
	}
	if err := s.validate(rule); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to update recurring rule: %w", err)
	}
	return rule, nil
}

// Deactivate stops the series. Existing instances are kept.
func (s *RuleService) Deactivate(ctx context.Context, userID, id string) error {
	rule, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(rule).Update("active", false).Error; err != nil {
		return fmt.Errorf("failed to deactivate recurring rule: %w", err)
	}
	s.logger.Info("Recurring rule deactivated", zap.String("recurring_task_id", id))
	return nil
}

func (s *RuleService) validate(rule *db.RecurringTask) error {
	tmpl := rule.Template()
	if tmpl.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRule)
	}
	if tmpl.Priority != "" {
		if err := validatePriority(tmpl.Priority); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	if len(rule.DaysOfWeek) > 0 && rule.Pattern != db.PatternWeekly {
		return fmt.Errorf("%w: days_of_week only applies to weekly rules", ErrInvalidRule)
	}
	if rule.DayOfMonth != nil && rule.Pattern != db.PatternMonthly {
		return fmt.Errorf("%w: day_of_month only applies to monthly rules", ErrInvalidRule)
	}
	if rule.DayOfMonth != nil && *rule.DayOfMonth == 0 {
		return fmt.Errorf("%w: day_of_month must be between 1 and 31", ErrInvalidRule)
	}
	return RuleOf(rule).Validate()
}

// MaxPreview caps the number of dates Preview returns.
const MaxPreview = 52

// Preview lists the next count due dates of the rule after from, stopping
// at the end date.
func (s *RuleService) Preview(ctx context.Context, userID, id string, from time.Time, count int) ([]time.Time, error) {
	rule, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > MaxPreview {
		count = MaxPreview
	}
	calc := RuleOf(rule)
	dates := make([]time.Time, 0, count)
	cursor := db.DateOnly(from)
	for len(dates) < count {
		next, err := recurrence.NextOccurrence(calc, cursor)
		if err != nil {
			return nil, err
		}
		if rule.EndDate != nil && next.After(db.DateOnly(*rule.EndDate)) {
			break
		}
		dates = append(dates, next)
		cursor = next
	}
	return dates, nil
}
