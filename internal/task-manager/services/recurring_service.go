package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/internal/task-manager/recurrence"
	"task-recurrence-service/pkg/logger"
	"task-recurrence-service/pkg/metrics"
)

// RecurringInstantiator creates the next instance of a recurring task when
// the current one is completed.
type RecurringInstantiator struct {
	db     *gorm.DB
	audit  *AuditService
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewRecurringInstantiator(gormDB *gorm.DB, audit *AuditService, clock clockwork.Clock, logger *zap.Logger) *RecurringInstantiator {
	return &RecurringInstantiator{db: gormDB, audit: audit, clock: clock, logger: logger}
}

// HandleTaskCompleted returns the created successor, or nil when the event
// calls for no new instance. A redelivered event whose successor already
// exists yields ErrSuccessorExists.
func (s *RecurringInstantiator) HandleTaskCompleted(ctx context.Context, ev events.TaskEvent) (*db.Task, error) {
	log := logger.WithCorrelation(s.logger, ev.CorrelationID).With(zap.String("task_id", ev.TaskID))
	if ev.TaskID == "" {
		log.Info("Completion event without task id, skipping")
		return nil, nil
	}

	var completed db.Task
	if err := s.db.WithContext(ctx).First(&completed, "id = ?", ev.TaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info("Completed task not found, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load task %s: %w", ev.TaskID, err)
	}
	if completed.RecurringTaskID == nil {
		return nil, nil
	}

	var rule db.RecurringTask
	if err := s.db.WithContext(ctx).First(&rule, "id = ?", *completed.RecurringTaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Info("Recurring rule missing, series stops", zap.String("recurring_task_id", *completed.RecurringTaskID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load recurring rule %s: %w", *completed.RecurringTaskID, err)
	}
	if !rule.Active {
		log.Info("Recurring rule inactive, skipping", zap.String("recurring_task_id", rule.ID))
		return nil, nil
	}

	today := db.DateOnly(s.clock.Now())
	if rule.EndDate != nil && db.DateOnly(*rule.EndDate).Before(today) {
		log.Info("Recurring rule past end date", zap.String("recurring_task_id", rule.ID))
		return nil, nil
	}

	from := today
	if completed.DueDate != nil {
		from = db.DateOnly(*completed.DueDate)
	}
	nextDue, err := recurrence.NextOccurrence(RuleOf(&rule), from)
	if err != nil {
		return nil, fmt.Errorf("recurring rule %s: %w", rule.ID, err)
	}
	if rule.EndDate != nil && nextDue.After(db.DateOnly(*rule.EndDate)) {
		log.Info("Next occurrence falls after end date, series complete",
			zap.String("recurring_task_id", rule.ID),
			zap.Time("next_due", nextDue),
		)
		return nil, nil
	}

	successor := newInstance(&rule, &completed, nextDue)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&db.Task{}).Where("source_task_id = ?", completed.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check for existing successor: %w", err)
		}
		if existing > 0 {
			return ErrSuccessorExists
		}
		if err := tx.Create(successor).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSuccessorExists
			}
			return fmt.Errorf("failed to create successor: %w", err)
		}
		_, err := s.audit.RecordTx(tx, events.TaskEvent{
			EventType:     events.EventRecurringInstanceCreated,
			TaskID:        successor.ID,
			UserID:        successor.UserID,
			TaskData:      events.TaskSnapshot(successor),
			CorrelationID: correlationOr(ev.CorrelationID),
			Metadata:      events.Metadata{Source: events.SourceRecurringTask},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSuccessorExists) {
			log.Info("Successor already exists, duplicate completion ignored")
		}
		return nil, err
	}

	metrics.IncrementRecurringInstances()
	log.Info("Created next recurring instance",
		zap.String("new_task_id", successor.ID),
		zap.String("recurring_task_id", rule.ID),
		zap.Time("due_date", nextDue),
	)
	return successor, nil
}

// newInstance stamps a task from the rule's template. Empty template fields
// fall back to the completed instance.
func newInstance(rule *db.RecurringTask, completed *db.Task, dueDate time.Time) *db.Task {
	tmpl := rule.Template()
	task := &db.Task{
		UserID:              rule.UserID,
		Title:               firstNonEmpty(tmpl.Title, completed.Title),
		Description:         firstNonEmpty(tmpl.Description, completed.Description),
		Priority:            firstNonEmpty(tmpl.Priority, completed.Priority, db.PriorityMedium),
		Tags:                datatypes.JSONSlice[string](tmpl.Tags),
		DueDate:             &dueDate,
		DueTime:             completed.DueTime,
		RecurringTaskID:     &rule.ID,
		IsRecurringInstance: true,
		SourceTaskID:        &completed.ID,
	}
	if tmpl.Tags == nil {
		task.Tags = completed.Tags
	}
	return task
}

// RuleOf converts a stored rule into the calculator's form.
func RuleOf(rule *db.RecurringTask) recurrence.Rule {
	r := recurrence.Rule{
		Pattern:    recurrence.Pattern(rule.Pattern),
		Interval:   rule.Interval,
		DaysOfWeek: []int(rule.DaysOfWeek),
	}
	if rule.DayOfMonth != nil {
		r.DayOfMonth = *rule.DayOfMonth
	}
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func correlationOr(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
