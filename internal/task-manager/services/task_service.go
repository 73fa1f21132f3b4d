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
	"gorm.io/gorm/clause"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/internal/task-manager/reminders"
)

// TaskPublisher is the part of the event publisher task commands need.
type TaskPublisher interface {
	PublishTaskEvent(ctx context.Context, eventType string, task *db.Task) error
}

type ReminderInput struct {
	RemindDate time.Time
	RemindTime *string
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	Tags        []string
	DueDate     *time.Time
	DueTime     *string
	Reminder    *ReminderInput
}

// UpdateTaskInput changes only the fields that are set.
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Priority       *string
	Tags           []string
	DueDate        *time.Time
	DueTime        *string
	Reminder       *ReminderInput
	RemoveReminder bool
}

// Task list sort columns.
const (
	SortByCreatedAt = "created_at"
	SortByDueDate   = "due_date"
	SortByPriority  = "priority"
	SortByTitle     = "title"
	SortByCompleted = "completed"
)

// DueSoonDays is the window of the DueSoon filter, today included.
const DueSoonDays = 3

// TaskFilter narrows a task listing. Zero values do not filter.
type TaskFilter struct {
	Completed       *bool
	RecurringTaskID string
	Priority        string
	// Overdue keeps open tasks whose due date is before today.
	Overdue bool
	// DueSoon keeps open tasks due between today and DueSoonDays from now.
	DueSoon  bool
	DateFrom *time.Time
	DateTo   *time.Time
	// SortBy is one of the SortBy* columns; empty keeps due date order with
	// undated tasks last. SortDesc only applies when SortBy is set.
	SortBy   string
	SortDesc bool
}

// TaskService implements the task commands. Each command publishes the
// matching lifecycle event after its write commits; publish failures do
// not fail the command.
type TaskService struct {
	db        *gorm.DB
	publisher TaskPublisher
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewTaskService(gormDB *gorm.DB, publisher TaskPublisher, clock clockwork.Clock, logger *zap.Logger) *TaskService {
	return &TaskService{db: gormDB, publisher: publisher, clock: clock, logger: logger}
}

func (s *TaskService) Create(ctx context.Context, userID string, in CreateTaskInput) (*db.Task, error) {
	task, err := s.build(userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertTask(tx, task)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Task created", zap.String("task_id", task.ID), zap.String("user_id", userID))
	s.publish(ctx, events.EventTaskCreated, task)
	return task, nil
}

// build validates in and returns the unsaved task with its reminder attached.
func (s *TaskService) build(userID string, in CreateTaskInput) (*db.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	priority := in.Priority
	if priority == "" {
		priority = db.PriorityMedium
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}
	if err := validateClock(in.DueTime); err != nil {
		return nil, err
	}

	task := &db.Task{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Priority:    priority,
		Tags:        datatypes.JSONSlice[string](nonNilTags(in.Tags)),
		DueDate:     dateOnlyPtr(in.DueDate),
		DueTime:     in.DueTime,
	}
	if in.Reminder != nil {
		r, err := s.newReminder(*in.Reminder)
		if err != nil {
			return nil, err
		}
		task.Reminder = r
	}
	return task, nil
}

func insertTask(tx *gorm.DB, task *db.Task) error {
	if err := tx.Omit("Reminder").Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if task.Reminder != nil {
		task.Reminder.TaskID = task.ID
		if err := tx.Create(task.Reminder).Error; err != nil {
			return fmt.Errorf("failed to create reminder: %w", err)
		}
	}
	return nil
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (*db.Task, error) {
	var task db.Task
	if err := s.db.WithContext(ctx).Preload("Reminder").First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	if task.UserID != userID {
		return nil, fmt.Errorf("task %s: %w", id, ErrForbidden)
	}
	return &task, nil
}

// List returns the user's tasks matching filter.
func (s *TaskService) List(ctx context.Context, userID string, filter TaskFilter) ([]db.Task, error) {
	query := s.db.WithContext(ctx).Preload("Reminder").Where("user_id = ?", userID)
	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}
	if filter.RecurringTaskID != "" {
		query = query.Where("recurring_task_id = ?", filter.RecurringTaskID)
	}
	if filter.Priority != "" {
		if err := validatePriority(filter.Priority); err != nil {
			return nil, err
		}
		query = query.Where("priority = ?", filter.Priority)
	}
	today := db.DateOnly(s.clock.Now())
	if filter.Overdue {
		query = query.Where("due_date < ? AND completed = ?", today, false)
	}
	if filter.DueSoon {
		query = query.Where("due_date >= ? AND due_date <= ? AND completed = ?", today, today.AddDate(0, 0, DueSoonDays), false)
	}
	if filter.DateFrom != nil {
		query = query.Where("due_date >= ?", db.DateOnly(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		query = query.Where("due_date <= ?", db.DateOnly(*filter.DateTo))
	}

	switch filter.SortBy {
	case "":
		query = query.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").Order("due_date ASC")
	case SortByCreatedAt, SortByDueDate, SortByPriority, SortByTitle, SortByCompleted:
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: filter.SortBy}, Desc: filter.SortDesc})
	default:
		return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidTask, filter.SortBy)
	}

	var tasks []db.Task
	if err := query.Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Update(ctx context.Context, userID, id string, in UpdateTaskInput) (*db.Task, error) {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidTask)
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if err := validatePriority(*in.Priority); err != nil {
			return nil, err
		}
		task.Priority = *in.Priority
	}
	if in.Tags != nil {
		task.Tags = datatypes.JSONSlice[string](in.Tags)
	}
	if in.DueDate != nil {
		task.DueDate = dateOnlyPtr(in.DueDate)
	}
	if in.DueTime != nil {
		if err := validateClock(in.DueTime); err != nil {
			return nil, err
		}
		task.DueTime = in.DueTime
	}

	var replacement *db.Reminder
	if !in.RemoveReminder && in.Reminder != nil {
		if replacement, err = s.newReminder(*in.Reminder); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Reminder").Save(task).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		switch {
		case in.RemoveReminder:
			if err := tx.Where("task_id = ?", task.ID).Delete(&db.Reminder{}).Error; err != nil {
				return fmt.Errorf("failed to remove reminder: %w", err)
			}
			task.Reminder = nil
		case replacement != nil && task.Reminder != nil:
			existing := task.Reminder
			existing.RemindDate = replacement.RemindDate
			existing.RemindTime = replacement.RemindTime
			existing.Sent = false
			existing.SentAt = nil
			if err := tx.Save(existing).Error; err != nil {
				return fmt.Errorf("failed to replace reminder: %w", err)
			}
		case replacement != nil:
			replacement.TaskID = task.ID
			if err := tx.Create(replacement).Error; err != nil {
				return fmt.Errorf("failed to create reminder: %w", err)
			}
			task.Reminder = replacement
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTaskUpdated, task)
	return task, nil
}

// ToggleComplete flips the completion flag. Completing suppresses the
// reminder; reopening restores it only while its moment is still ahead.
func (s *TaskService) ToggleComplete(ctx context.Context, userID, id string) (*db.Task, error) {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	task.Completed = !task.Completed
	if task.Completed {
		task.CompletedAt = &now
		if task.Reminder != nil {
			task.Reminder.Sent = true
			task.Reminder.SentAt = &now
		}
	} else {
		task.CompletedAt = nil
		if r := task.Reminder; r != nil && r.Sent {
			at, err := reminders.DueAt(r.RemindDate, r.RemindTime)
			if err == nil && at.After(now) {
				r.Sent = false
				r.SentAt = nil
			}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Reminder").Save(task).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if task.Reminder != nil {
			if err := tx.Save(task.Reminder).Error; err != nil {
				return fmt.Errorf("failed to update reminder: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := events.EventTaskUpdated
	if task.Completed {
		eventType = events.EventTaskCompleted
	}
	s.publish(ctx, eventType, task)
	return task, nil
}

// Delete removes the task and its reminder.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&db.Reminder{}).Error; err != nil {
			return fmt.Errorf("failed to delete reminder: %w", err)
		}
		if err := tx.Delete(&db.Task{}, "id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.EventTaskDeleted, task)
	return nil
}

// AcknowledgeReminder marks the task's reminder as delivered so later scans
// skip it.
func (s *TaskService) AcknowledgeReminder(ctx context.Context, userID, taskID string) (*db.Reminder, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Reminder == nil {
		return nil, fmt.Errorf("reminder for task %s: %w", taskID, ErrNotFound)
	}
	if task.Reminder.Sent {
		return task.Reminder, nil
	}
	now := s.clock.Now().UTC()
	task.Reminder.Sent = true
	task.Reminder.SentAt = &now
	if err := s.db.WithContext(ctx).Save(task.Reminder).Error; err != nil {
		return nil, fmt.Errorf("failed to acknowledge reminder: %w", err)
	}
	return task.Reminder, nil
}

func (s *TaskService) newReminder(in ReminderInput) (*db.Reminder, error) {
	if err := validateClock(in.RemindTime); err != nil {
		return nil, err
	}
	date := db.DateOnly(in.RemindDate)
	if date.Before(db.DateOnly(s.clock.Now())) {
		return nil, fmt.Errorf("%w: reminder date must not be in the past", ErrInvalidTask)
	}
	return &db.Reminder{RemindDate: date, RemindTime: in.RemindTime}, nil
}

func (s *TaskService) publish(ctx context.Context, eventType string, task *db.Task) {
	if s.publisher == nil {
		return
	}
	// Failures are logged by the publisher; the command has already committed.
	_ = s.publisher.PublishTaskEvent(ctx, eventType, task)
}

func validatePriority(p string) error {
	switch p {
	case db.PriorityLow, db.PriorityMedium, db.PriorityHigh:
		return nil
	}
	return fmt.Errorf("%w: priority must be low, medium, or high", ErrInvalidTask)
}

const clockLayout = "15:04"

func validateClock(s *string) error {
	if s == nil || *s == "" {
		return nil
	}
	// Stored as HH:MM; seconds are not kept.
	if _, err := time.Parse(clockLayout, *s); err != nil || len(*s) != len(clockLayout) {
		return fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidTask, *s)
	}
	return nil
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := db.DateOnly(*t)
	return &d
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
