package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/reminders"
)

// seedReminderTask stores a task due at dueDate/dueTime with an unsent reminder.
func seedReminderTask(t *testing.T, h *harness, title string, dueDate time.Time, dueTime *string, mutate func(*db.Task, *db.Reminder)) *db.Task {
	t.Helper()
	task := &db.Task{UserID: "user-1", Title: title, DueDate: &dueDate, DueTime: dueTime}
	reminder := &db.Reminder{RemindDate: dueDate}
	if mutate != nil {
		mutate(task, reminder)
	}
	require.NoError(t, h.db.Create(task).Error)
	reminder.TaskID = task.ID
	require.NoError(t, h.db.Create(reminder).Error)
	return task
}

func TestReminderScanner_ClassifiesAndCounts(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, now)
	today := day(2025, 1, 6)

	soon := seedReminderTask(t, h, "due in 10m", today, ptr("12:10"), nil)
	late := seedReminderTask(t, h, "due 1m ago", today, ptr("11:59"), nil)
	seedReminderTask(t, h, "due in 1h", today, ptr("13:00"), nil)
	midnight := seedReminderTask(t, h, "due at midnight", today, nil, nil)
	seedReminderTask(t, h, "completed", today, ptr("12:05"), func(task *db.Task, _ *db.Reminder) { task.Completed = true })
	seedReminderTask(t, h, "already sent", today, ptr("12:05"), func(_ *db.Task, r *db.Reminder) { r.Sent = true })
	// No reminder row at all.
	require.NoError(t, h.db.Create(&db.Task{UserID: "user-1", Title: "no reminder", DueDate: &today, DueTime: ptr("12:05")}).Error)

	n, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := map[string]string{}
	for _, ev := range h.sender.reminders(t) {
		got[ev.TaskID] = ev.Type
		assert.True(t, now.Equal(ev.RemindAt))
		assert.Equal(t, "user-1", ev.UserID)
	}
	assert.Equal(t, map[string]string{
		soon.ID:     string(reminders.DueSoon),
		late.ID:     string(reminders.Overdue),
		midnight.ID: string(reminders.Overdue),
	}, got)

	var unsent int64
	h.db.Model(&db.Reminder{}).Where("sent = ?", false).Count(&unsent)
	assert.Equal(t, int64(5), unsent, "scanning must not mark reminders sent")
}

func TestReminderScanner_RepeatsUntilAcknowledged(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	task := seedReminderTask(t, h, "overdue", day(2025, 1, 5), nil, nil)

	for i := 0; i < 2; i++ {
		n, err := h.scanner.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	_, err := h.tasks.AcknowledgeReminder(ctx, "user-1", task.ID)
	require.NoError(t, err)
	n, err := h.scanner.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReminderScanner_PublishFailuresAreNotCounted(t *testing.T) {
	h := newHarness(t, time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC))
	seedReminderTask(t, h, "due soon", day(2025, 1, 6), ptr("12:20"), nil)
	h.sender.fail = true

	n, err := h.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
