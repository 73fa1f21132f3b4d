package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/pkg/config"
)

type acker interface {
	Ack(multiple bool) error
}

type Consumer struct {
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	queue          string
	topic          string
	handler        events.Handler
	handlerTimeout time.Duration
	logger         *zap.Logger
}

// NewConsumer declares and binds the group's queue for topic.
func NewConsumer(cfg config.BrokerConfig, topic string, handler events.Handler, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := dial(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	queue := QueueName(cfg.GroupID, topic)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, topic, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	logger.Info("AMQP consumer initialized",
		zap.String("routing_key", topic),
		zap.String("queue", queue),
		zap.String("exchange", cfg.Exchange),
	)
	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = config.DefaultHandlerTimeout
	}
	return &Consumer{
		conn: conn, channel: ch, queue: queue, topic: topic,
		handler: handler, handlerTimeout: timeout,
		logger: logger.With(zap.String("queue", queue)),
	}, nil
}

// Start registers the consumer and processes deliveries in a goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Consumer context cancelled, stopping")
				return
			case msg, ok := <-deliveries:
				if !ok {
					c.logger.Info("Delivery channel closed, stopping")
					return
				}
				c.process(ctx, msg.Body, &msg)
			}
		}
	}()
	return nil
}

// process runs the handler and always acks, so a failing message is never
// redelivered in a loop.
func (c *Consumer) process(ctx context.Context, body []byte, msg acker) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered", zap.Any("panic", r))
		}
		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack message", zap.Error(err))
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()
	if err := c.handler(handlerCtx, body); err != nil {
		c.logger.Error("Handler error, message acknowledged anyway",
			zap.String("routing_key", c.topic),
			zap.Int("message_size", len(body)),
			zap.Error(err),
		)
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
