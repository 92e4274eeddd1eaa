package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

// RabbitMQPublisher publishes to a durable topic exchange with the outbox
// topic as routing key.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": "pix-ledger-outbox"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewRabbitMQPublisher: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewRabbitMQPublisher: channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("NewRabbitMQPublisher: declare exchange: %w", err)
	}

	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	err := p.channel.PublishWithContext(ctx, p.exchange, msg.Topic, false, false, amqpPublishing(msg))
	if err != nil {
		return fmt.Errorf("RabbitMQPublisher.Publish: %w", err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

func amqpPublishing(msg domain.OutboxMessage) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Timestamp:    msg.CreatedAt,
		Type:         msg.Topic,
		Headers:      amqp.Table{"key": msg.Key},
		Body:         msg.Payload,
	}
}
