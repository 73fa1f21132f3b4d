// Package broker picks the event transport configured by broker.driver.
package broker

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	tmAMQP "task-recurrence-service/internal/task-manager/amqp"
	"task-recurrence-service/internal/task-manager/events"
	tmKafka "task-recurrence-service/internal/task-manager/kafka"
	"task-recurrence-service/pkg/config"
)

// NewSender returns the producer side of the configured transport.
func NewSender(cfg config.BrokerConfig, codec events.Codec, logger *zap.Logger) (events.Sender, error) {
	switch cfg.Driver {
	case config.BrokerDriverKafka:
		return tmKafka.NewProducer(cfg, logger), nil
	case config.BrokerDriverAMQP:
		return tmAMQP.NewPublisher(cfg, codec.ContentType(), logger)
	default:
		return nil, fmt.Errorf("unsupported broker driver %q", cfg.Driver)
	}
}

// StartConsumer subscribes handler to topic and starts consuming until ctx
// is cancelled. Closing the result releases the transport.
func StartConsumer(ctx context.Context, cfg config.BrokerConfig, topic string, handler events.Handler, logger *zap.Logger) (io.Closer, error) {
	switch cfg.Driver {
	case config.BrokerDriverKafka:
		c := tmKafka.NewConsumer(cfg, topic, handler, logger)
		c.Start(ctx)
		return c, nil
	case config.BrokerDriverAMQP:
		c, err := tmAMQP.NewConsumer(cfg, topic, handler, logger)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported broker driver %q", cfg.Driver)
	}
}
