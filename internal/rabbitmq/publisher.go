// Package rabbitmq forwards storefront analytics events to RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/metrics"
	"github.com/Checker-Finance/storefront/pkg/eventbus"
	"github.com/Checker-Finance/storefront/pkg/model"
)

const (
	// ExchangeAnalytics is the topic exchange analytics consumers bind to.
	ExchangeAnalytics = "storefront.analytics"
	// RoutingVariantResolved is the routing key for resolved variants.
	RoutingVariantResolved = "storefront.variant.resolved"
	// RoutingBreakdownComputed is the routing key for cart breakdowns.
	RoutingBreakdownComputed = "storefront.cart.breakdown"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes engine events to RabbitMQ
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	eventBus *eventbus.EventBus
	logger   *zap.Logger
	timeout  time.Duration
}

// NewPublisher connects, declares the analytics exchange and subscribes to bus.
func NewPublisher(url string, eventBus *eventbus.EventBus, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := newPublisher(ch, eventBus, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, eventBus *eventbus.EventBus, logger *zap.Logger) (*Publisher, error) {
	if err := ch.ExchangeDeclare(ExchangeAnalytics, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", ExchangeAnalytics, err)
	}

	p := &Publisher{
		channel:  ch,
		eventBus: eventBus,
		logger:   logger,
		timeout:  5 * time.Second,
	}
	p.subscribeToEvents()
	return p, nil
}

func (p *Publisher) subscribeToEvents() {
	eventbus.SubscribeTyped(p.eventBus, model.EventVariantResolved, p.publishVariantResolved)
	eventbus.SubscribeTyped(p.eventBus, model.EventBreakdownComputed, p.publishBreakdownComputed)
}

func (p *Publisher) publishVariantResolved(event model.VariantResolved) {
	if event.VariantID == "" {
		p.logger.Error("Received variant event without variant id", zap.Any("event", event))
		return
	}
	p.publish(RoutingVariantResolved, model.EventVariantResolved, event)
}

func (p *Publisher) publishBreakdownComputed(event model.BreakdownComputed) {
	p.publish(RoutingBreakdownComputed, model.EventBreakdownComputed, event)
}

func (p *Publisher) publish(routingKey, eventType string, event any) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("type", eventType), zap.Error(err))
		metrics.IncRabbitMessage(routingKey, "error")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		ExchangeAnalytics, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         eventType,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish analytics event",
			zap.String("routing_key", routingKey),
			zap.Error(err))
		metrics.IncRabbitMessage(routingKey, "error")
		return
	}

	p.logger.Debug("Published analytics event", zap.String("routing_key", routingKey))
	metrics.IncRabbitMessage(routingKey, "ok")
}

// Close closes the publisher
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
