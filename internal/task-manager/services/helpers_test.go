package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/pkg/config"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, gormDB.AutoMigrate(db.All()...), "Failed to migrate test database")
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

// recordingSender captures published messages and can be told to fail.
type recordingSender struct {
	mu   sync.Mutex
	sent map[string][][]byte
	fail bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][][]byte)}
}

func (r *recordingSender) Send(_ context.Context, topic, _ string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.sent[topic] = append(r.sent[topic], body)
	return nil
}

func (r *recordingSender) Close() error { return nil }

func (r *recordingSender) taskEvents(t *testing.T) []events.TaskEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.TaskEvent
	for _, body := range r.sent[config.DefaultTaskEventsTopic] {
		var ev events.TaskEvent
		require.NoError(t, events.JSONCodec{}.Unmarshal(body, &ev))
		out = append(out, ev)
	}
	return out
}

func (r *recordingSender) reminders(t *testing.T) []events.ReminderEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.ReminderEvent
	for _, body := range r.sent[config.DefaultReminderTopic] {
		var ev events.ReminderEvent
		require.NoError(t, events.JSONCodec{}.Unmarshal(body, &ev))
		out = append(out, ev)
	}
	return out
}

// harness wires the services the way cmd/task-manager does, on sqlite and a fake clock.
type harness struct {
	db           *gorm.DB
	clock        *clockwork.FakeClock
	sender       *recordingSender
	publisher    *events.Publisher
	audit        *AuditService
	instantiator *RecurringInstantiator
	tasks        *TaskService
	rules        *RuleService
	scanner      *ReminderScanner
	router       *EventRouter
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{db: setupServiceDB(t), clock: clockwork.NewFakeClockAt(now), sender: newRecordingSender()}
	h.publisher = events.NewPublisher(h.sender, events.JSONCodec{}, config.BrokerConfig{}, h.clock, log)
	h.audit = NewAuditService(h.db, h.clock, log)
	h.instantiator = NewRecurringInstantiator(h.db, h.audit, h.clock, log)
	h.tasks = NewTaskService(h.db, h.publisher, h.clock, log)
	h.rules = NewRuleService(h.db, h.tasks, h.clock, log)
	h.scanner = NewReminderScanner(h.db, h.publisher, h.clock, log)
	h.router = NewEventRouter(h.audit, h.instantiator, events.JSONCodec{}, log)
	return h
}

// deliverTaskEvents feeds every published task event through the router,
// as the worker would, and clears the outbox.
func (h *harness) deliverTaskEvents(t *testing.T) {
	t.Helper()
	h.sender.mu.Lock()
	bodies := h.sender.sent[config.DefaultTaskEventsTopic]
	h.sender.sent[config.DefaultTaskEventsTopic] = nil
	h.sender.mu.Unlock()
	for _, body := range bodies {
		require.NoError(t, h.router.HandleMessage(context.Background(), body))
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }
