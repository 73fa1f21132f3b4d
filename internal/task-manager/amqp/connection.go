// Package amqp is the RabbitMQ transport. Topics map to routing keys on a
// durable topic exchange.
package amqp

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

func dial(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// QueueName is the durable queue a consumer group binds for a topic.
func QueueName(group, topic string) string {
	return group + "." + topic
}
