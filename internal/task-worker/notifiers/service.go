package notifiers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/pkg/config"
	"task-recurrence-service/pkg/metrics"
)

// Deduper grants a key once per ttl.
type Deduper interface {
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) bool
}

// NotificationService consumes reminder events. The scanner re-publishes a
// reminder on every run, so repeats inside the TTL for their type are
// dropped here.
type NotificationService struct {
	registry   *Registry
	deduper    Deduper
	codec      events.Codec
	dueSoonTTL time.Duration
	overdueTTL time.Duration
	logger     *zap.Logger
}

// NewNotificationService wires the service. A nil deduper disables
// duplicate suppression.
func NewNotificationService(registry *Registry, deduper Deduper, codec events.Codec, cfg config.ReminderConfig, logger *zap.Logger) *NotificationService {
	if codec == nil {
		codec = events.JSONCodec{}
	}
	if cfg.DueSoonDedupTTL <= 0 {
		cfg.DueSoonDedupTTL = config.DefaultDueSoonDedupTTL
	}
	if cfg.OverdueDedupTTL <= 0 {
		cfg.OverdueDedupTTL = config.DefaultOverdueDedupTTL
	}
	return &NotificationService{
		registry:   registry,
		deduper:    deduper,
		codec:      codec,
		dueSoonTTL: cfg.DueSoonDedupTTL,
		overdueTTL: cfg.OverdueDedupTTL,
		logger:     logger,
	}
}

// HandleMessage decodes a reminder event and delivers it. It returns nil
// for anything it cannot process so the message is acknowledged.
func (s *NotificationService) HandleMessage(ctx context.Context, body []byte) error {
	var ev events.ReminderEvent
	if err := s.codec.Unmarshal(body, &ev); err != nil {
		s.logger.Error("Dropping undecodable reminder event", zap.Int("size", len(body)), zap.Error(err))
		return nil
	}
	if ev.TaskID == "" {
		s.logger.Error("Dropping reminder event without task_id")
		return nil
	}
	s.Notify(ctx, ev)
	return nil
}

// Notify delivers ev to every registered notifier unless it is a repeat.
// It reports how many notifiers succeeded.
func (s *NotificationService) Notify(ctx context.Context, ev events.ReminderEvent) int {
	log := s.logger.With(
		zap.String("task_id", ev.TaskID),
		zap.String("user_id", ev.UserID),
		zap.String("type", ev.Type),
		zap.String("correlation_id", ev.CorrelationID),
	)
	log.Info("Reminder event received", zap.Time("due_at", ev.DueAt))

	if s.deduper != nil && !s.deduper.AcquireOnce(ctx, DedupKey(ev), s.ttlFor(ev.Type)) {
		log.Debug("Duplicate reminder suppressed")
		metrics.RecordNotification("suppressed")
		return 0
	}

	r := Reminder{TaskID: ev.TaskID, UserID: ev.UserID, Type: ev.Type, DueAt: ev.DueAt, RemindAt: ev.RemindAt}
	delivered := 0
	for _, name := range s.registry.Names() {
		n, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		if err := n.Notify(ctx, r); err != nil {
			log.Warn("Notifier failed", zap.String("notifier", name), zap.Error(err))
			metrics.RecordNotification("failed")
			continue
		}
		metrics.RecordNotification("sent")
		delivered++
	}
	return delivered
}

func (s *NotificationService) ttlFor(reminderType string) time.Duration {
	if reminderType == "overdue" {
		return s.overdueTTL
	}
	return s.dueSoonTTL
}

// DedupKey identifies one reminder of one type for one due moment.
func DedupKey(ev events.ReminderEvent) string {
	return fmt.Sprintf("reminder:%s:%s:%s", ev.TaskID, ev.Type, ev.DueAt.UTC().Format(time.RFC3339))
}
