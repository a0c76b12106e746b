package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventPublisher - канал уведомлений, соседний с инвалидацией кеша
type EventPublisher interface {
	Publish(ctx context.Context, event WriteEvent) error
	Close() error
}

// RabbitPublisher публикует события записи в topic exchange.
// Routing key: feed.<тип события>.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitPublisher подключается к брокеру и объявляет exchange
func NewRabbitPublisher(url, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	logger.Info("RabbitMQ publisher initialized", zap.String("exchange", exchange))
	return &RabbitPublisher{conn: conn, channel: channel, exchange: exchange, logger: logger}, nil
}

func routingKey(event WriteEvent) string {
	return "feed." + string(event.Type)
}

func (p *RabbitPublisher) Publish(ctx context.Context, event WriteEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return fmt.Errorf("RabbitMQ channel not initialized")
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher используется, когда брокер не настроен
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, WriteEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
