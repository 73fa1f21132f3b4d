package events

import (
	"context"
	"time"

	"task-recurrence-service/internal/task-manager/db"
)

const SchemaVersion = "1.0"

// Task lifecycle event types published on the task events topic.
const (
	EventTaskCreated   = "task.created"
	EventTaskUpdated   = "task.updated"
	EventTaskCompleted = "task.completed"
	EventTaskDeleted   = "task.deleted"

	// EventRecurringInstanceCreated is only written to the audit log.
	EventRecurringInstanceCreated = "task.recurring_instance_created"

	EventReminder = "reminder"
)

const (
	SourceBackendAPI    = "backend-api"
	SourceReminderCron  = "reminder-cron"
	SourceRecurringTask = "recurring-instantiator"
)

// Handler processes one raw transport message.
type Handler func(ctx context.Context, body []byte) error

type Metadata struct {
	Source string `json:"source"`
}

// TaskEvent is sent on the task events topic for every lifecycle change.
type TaskEvent struct {
	SchemaVersion string                 `json:"schema_version,omitempty"`
	EventType     string                 `json:"event_type"`
	TaskID        string                 `json:"task_id,omitempty"`
	UserID        string                 `json:"user_id"`
	TaskData      map[string]interface{} `json:"task_data,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      Metadata               `json:"metadata"`
}

// ReminderEvent is sent on the reminders topic by the reminder scan.
type ReminderEvent struct {
	SchemaVersion string    `json:"schema_version,omitempty"`
	EventType     string    `json:"event_type"`
	TaskID        string    `json:"task_id"`
	UserID        string    `json:"user_id"`
	DueAt         time.Time `json:"due_at"`
	RemindAt      time.Time `json:"remind_at"`
	Type          string    `json:"type"` // due_soon | overdue
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Metadata      Metadata  `json:"metadata"`
}

// TaskSnapshot renders the task fields carried in task_data.
func TaskSnapshot(t *db.Task) map[string]interface{} {
	data := map[string]interface{}{
		"id":                    t.ID,
		"title":                 t.Title,
		"description":           t.Description,
		"priority":              t.Priority,
		"tags":                  []string(t.Tags),
		"completed":             t.Completed,
		"is_recurring_instance": t.IsRecurringInstance,
	}
	if t.DueDate != nil {
		data["due_date"] = t.DueDate.Format(time.DateOnly)
	}
	if t.DueTime != nil {
		data["due_time"] = *t.DueTime
	}
	if t.CompletedAt != nil {
		data["completed_at"] = t.CompletedAt.Format(time.RFC3339)
	}
	if t.RecurringTaskID != nil {
		data["recurring_task_id"] = *t.RecurringTaskID
	}
	return data
}
