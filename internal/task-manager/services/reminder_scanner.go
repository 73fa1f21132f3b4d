package services

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/internal/task-manager/reminders"
	"task-recurrence-service/pkg/metrics"
)

// ReminderPublisher is the part of the event publisher the scanner needs.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, ev events.ReminderEvent) error
}

// ReminderScanner re-classifies pending reminders on every run. It only
// reads task and reminder state; marking a reminder sent is left to
// completion and explicit acknowledgement.
type ReminderScanner struct {
	db        *gorm.DB
	publisher ReminderPublisher
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewReminderScanner(gormDB *gorm.DB, publisher ReminderPublisher, clock clockwork.Clock, logger *zap.Logger) *ReminderScanner {
	return &ReminderScanner{db: gormDB, publisher: publisher, clock: clock, logger: logger}
}

// Scan publishes one reminder per due-soon or overdue task and returns how
// many were published successfully.
func (s *ReminderScanner) Scan(ctx context.Context) (int, error) {
	started := s.clock.Now()
	now := started.UTC()
	defer func() { metrics.RecordReminderScan(s.clock.Since(started)) }()

	var tasks []db.Task
	err := s.db.WithContext(ctx).
		Joins("JOIN reminders ON reminders.task_id = tasks.id").
		Where("tasks.completed = ?", false).
		Where("tasks.due_date IS NOT NULL").
		Where("reminders.sent = ?", false).
		Find(&tasks).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load pending reminders: %w", err)
	}

	published := 0
	for i := range tasks {
		task := &tasks[i]
		dueAt, err := reminders.DueAt(*task.DueDate, task.DueTime)
		if err != nil {
			s.logger.Warn("Skipping task with unparseable due time", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
		window := reminders.Classify(now, dueAt)
		if window == reminders.NotDue {
			continue
		}
		err = s.publisher.PublishReminder(ctx, events.ReminderEvent{
			TaskID:   task.ID,
			UserID:   task.UserID,
			DueAt:    dueAt,
			RemindAt: now,
			Type:     string(window),
		})
		if err != nil {
			// Already logged by the publisher; the next scan retries.
			continue
		}
		metrics.RecordReminderPublished(string(window))
		published++
	}

	s.logger.Info("Reminder scan finished",
		zap.Int("candidates", len(tasks)),
		zap.Int("published", published),
		zap.Duration("took", s.clock.Since(started)),
	)
	return published, nil
}
