package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/pkg/config"
	"task-recurrence-service/pkg/metrics"
)

// Sender writes an encoded message to a topic. The kafka and amqp
// transports implement it.
type Sender interface {
	Send(ctx context.Context, topic, key string, body []byte) error
	Close() error
}

// Publisher stamps the event envelope and hands events to a Sender.
// Delivery is best effort: failures are logged and counted, and callers
// decide whether the returned error matters.
type Publisher struct {
	sender          Sender
	codec           Codec
	clock           clockwork.Clock
	logger          *zap.Logger
	publishTimeout  time.Duration
	taskEventsTopic string
	reminderTopic   string
}

func NewPublisher(sender Sender, codec Codec, cfg config.BrokerConfig, clock clockwork.Clock, logger *zap.Logger) *Publisher {
	if codec == nil {
		codec = JSONCodec{}
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = config.DefaultPublishTimeout
	}
	if cfg.TaskEventsTopic == "" {
		cfg.TaskEventsTopic = config.DefaultTaskEventsTopic
	}
	if cfg.ReminderTopic == "" {
		cfg.ReminderTopic = config.DefaultReminderTopic
	}
	return &Publisher{
		sender:          sender,
		codec:           codec,
		clock:           clock,
		logger:          logger,
		publishTimeout:  cfg.PublishTimeout,
		taskEventsTopic: cfg.TaskEventsTopic,
		reminderTopic:   cfg.ReminderTopic,
	}
}

// PublishTaskEvent publishes a lifecycle event carrying a snapshot of task.
func (p *Publisher) PublishTaskEvent(ctx context.Context, eventType string, task *db.Task) error {
	ev := TaskEvent{
		SchemaVersion: SchemaVersion,
		EventType:     eventType,
		TaskID:        task.ID,
		UserID:        task.UserID,
		TaskData:      TaskSnapshot(task),
		CorrelationID: uuid.NewString(),
		Timestamp:     p.clock.Now().UTC(),
		Metadata:      Metadata{Source: SourceBackendAPI},
	}
	return p.publish(ctx, p.taskEventsTopic, ev.TaskID, ev.CorrelationID, ev)
}

// PublishReminder publishes a reminder event. Missing envelope fields are filled in.
func (p *Publisher) PublishReminder(ctx context.Context, ev ReminderEvent) error {
	ev.SchemaVersion = SchemaVersion
	ev.EventType = EventReminder
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.clock.Now().UTC()
	}
	if ev.Metadata.Source == "" {
		ev.Metadata.Source = SourceReminderCron
	}
	return p.publish(ctx, p.reminderTopic, ev.TaskID, ev.CorrelationID, ev)
}

func (p *Publisher) publish(ctx context.Context, topic, key, correlationID string, v interface{}) error {
	body, err := p.codec.Marshal(v)
	if err != nil {
		p.logger.Error("Failed to encode event", zap.String("topic", topic), zap.Error(err))
		metrics.RecordPublishFailure(topic)
		return fmt.Errorf("failed to encode event for %s: %w", topic, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()
	if err := p.sender.Send(sendCtx, topic, key, body); err != nil {
		p.logger.Warn("Event publish failed, skipping",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		metrics.RecordPublishFailure(topic)
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	p.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.String("correlation_id", correlationID),
	)
	return nil
}

// Close releases the underlying transport.
func (p *Publisher) Close() error {
	return p.sender.Close()
}
