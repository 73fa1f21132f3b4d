package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PatternDaily   = "daily"
	PatternWeekly  = "weekly"
	PatternMonthly = "monthly"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// TaskTemplate is the part of a recurring rule copied into every instance.
type TaskTemplate struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// RecurringTask is a rule that regenerates a task each time the previous
// instance is completed. Rules are deactivated, never deleted.
type RecurringTask struct {
	ID           string                           `json:"id" gorm:"primaryKey;size:36"`
	UserID       string                           `json:"user_id" gorm:"size:64;index;not null"`
	TaskTemplate datatypes.JSONType[TaskTemplate] `json:"task_template"`
	Pattern      string                           `json:"pattern" gorm:"size:16;not null"`
	Interval     int                              `json:"interval" gorm:"not null;default:1"`
	DaysOfWeek   datatypes.JSONSlice[int]         `json:"days_of_week,omitempty"` // 0=Monday ... 6=Sunday
	DayOfMonth   *int                             `json:"day_of_month,omitempty"`
	EndDate      *time.Time                       `json:"end_date,omitempty"`
	Active       bool                             `json:"active" gorm:"not null;default:true;index"`
	CreatedAt    time.Time                        `json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

// Task is a single, possibly recurring, unit of work.
type Task struct {
	ID                  string                      `json:"id" gorm:"primaryKey;size:36"`
	UserID              string                      `json:"user_id" gorm:"size:64;index;not null"`
	Title               string                      `json:"title" gorm:"size:255;not null"`
	Description         string                      `json:"description"`
	Priority            string                      `json:"priority" gorm:"size:16;default:medium"`
	Tags                datatypes.JSONSlice[string] `json:"tags"`
	DueDate             *time.Time                  `json:"due_date,omitempty" gorm:"index"`
	DueTime             *string                     `json:"due_time,omitempty" gorm:"size:5"`
	Completed           bool                        `json:"completed" gorm:"index"`
	CompletedAt         *time.Time                  `json:"completed_at,omitempty"`
	RecurringTaskID     *string                     `json:"recurring_task_id,omitempty" gorm:"size:36;index"`
	IsRecurringInstance bool                        `json:"is_recurring_instance"`
	// SourceTaskID is the completed instance this one succeeds.
	SourceTaskID *string   `json:"source_task_id,omitempty" gorm:"size:36;uniqueIndex"`
	Reminder     *Reminder `json:"reminder,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reminder belongs to exactly one task.
type Reminder struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	TaskID     string     `json:"task_id" gorm:"size:36;uniqueIndex;not null"`
	RemindDate time.Time  `json:"remind_date"`
	RemindTime *string    `json:"remind_time,omitempty" gorm:"size:5"`
	Sent       bool       `json:"sent" gorm:"index"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditLog is an append-only record of a task lifecycle event.
type AuditLog struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	UserID    string         `json:"user_id" gorm:"size:64;index:idx_audit_user_time,priority:1;not null"`
	EventType string         `json:"event_type" gorm:"size:64;index"`
	TaskID    *string        `json:"task_id,omitempty" gorm:"size:36;index"`
	EventData datatypes.JSON `json:"event_data"`
	Timestamp time.Time      `json:"timestamp" gorm:"index:idx_audit_user_time,priority:2"`
}

// All lists the models to migrate.
func All() []interface{} {
	return []interface{}{&RecurringTask{}, &Task{}, &Reminder{}, &AuditLog{}}
}

func (r *RecurringTask) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (t *Task) BeforeCreate(*gorm.DB) error          { assignID(&t.ID); return nil }
func (r *Reminder) BeforeCreate(*gorm.DB) error      { assignID(&r.ID); return nil }
func (a *AuditLog) BeforeCreate(*gorm.DB) error      { assignID(&a.ID); return nil }

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Template returns the rule's task template.
func (r *RecurringTask) Template() TaskTemplate {
	return r.TaskTemplate.Data()
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
