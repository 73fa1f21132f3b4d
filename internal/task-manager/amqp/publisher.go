package amqp

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"task-recurrence-service/pkg/config"
)

type Publisher struct {
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	exchange    string
	contentType string
}

func NewPublisher(cfg config.BrokerConfig, contentType string, logger *zap.Logger) (*Publisher, error) {
	conn, ch, err := dial(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	logger.Info("AMQP publisher connected", zap.String("exchange", cfg.Exchange))
	return &Publisher{conn: conn, channel: ch, exchange: cfg.Exchange, contentType: contentType}, nil
}

// Send publishes body with topic as the routing key.
func (p *Publisher) Send(ctx context.Context, topic, key string, body []byte) error {
	return p.channel.PublishWithContext(ctx, p.exchange, topic, false, false, amqp091.Publishing{
		ContentType:  p.contentType,
		MessageId:    key,
		Body:         body,
		DeliveryMode: amqp091.Persistent,
	})
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
