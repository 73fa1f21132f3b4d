package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/pkg/config"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads one topic in a consumer group and passes every message to
// its handler. Offsets are committed whether or not the handler succeeds.
type Consumer struct {
	reader         messageReader
	handler        events.Handler
	handlerTimeout time.Duration
	topic          string
	logger         *zap.Logger
	done           chan struct{}
}

func NewConsumer(cfg config.BrokerConfig, topic string, handler events.Handler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers, GroupID: cfg.GroupID, Topic: topic,
		MinBytes: 10e3, MaxBytes: 10e6, CommitInterval: time.Second, MaxWait: 3 * time.Second,
	})
	logger.Info("Kafka consumer configured", zap.String("topic", topic), zap.String("group_id", cfg.GroupID))
	return newConsumer(reader, topic, handler, cfg.HandlerTimeout, logger)
}

func newConsumer(reader messageReader, topic string, handler events.Handler, timeout time.Duration, logger *zap.Logger) *Consumer {
	if timeout <= 0 {
		timeout = config.DefaultHandlerTimeout
	}
	return &Consumer{
		reader:         reader,
		handler:        handler,
		handlerTimeout: timeout,
		topic:          topic,
		logger:         logger.With(zap.String("topic", topic)),
		done:           make(chan struct{}),
	}
}

// Start consumes in a background goroutine until ctx is cancelled or the
// reader is closed.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("Consumer starting")
	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Consumer context cancelled, stopping")
				return
			default:
			}

			readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			msg, err := c.reader.ReadMessage(readCtx)
			cancel()

			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				c.logger.Info("Consumer read cancelled")
				return
			case errors.Is(err, io.EOF):
				c.logger.Info("Kafka reader closed, stopping consumption")
				return
			case err != nil:
				c.logger.Warn("Error reading message", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			c.handle(ctx, msg)
		}
	}()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	handlerCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered", zap.Int64("offset", msg.Offset), zap.Any("panic", r))
		}
	}()

	if err := c.handler(handlerCtx, msg.Value); err != nil {
		c.logger.Error("Handler error, message acknowledged anyway",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

// Done is closed once the consume loop has exited.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) Close() error {
	c.logger.Info("Closing Kafka reader")
	return c.reader.Close()
}
