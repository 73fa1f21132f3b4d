package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"task-recurrence-service/pkg/config"
)

// Producer writes events to Kafka. The topic is chosen per message.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg config.BrokerConfig, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	logger.Info("Kafka producer configured",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("task_events_topic", cfg.TaskEventsTopic),
		zap.String("reminder_topic", cfg.ReminderTopic),
	)
	return &Producer{writer: writer}
}

// Send writes one message keyed by key, so events of the same task stay ordered.
func (p *Producer) Send(ctx context.Context, topic, key string, body []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: body})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
