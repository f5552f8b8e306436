package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/storefront/internal/metrics"
	"github.com/Checker-Finance/storefront/pkg/eventbus"
	"github.com/Checker-Finance/storefront/pkg/logger"
	"github.com/Checker-Finance/storefront/pkg/model"
)

const (
	SubjectRatesRefreshed  = "evt.storefront.rates.refreshed.v1"
	SubjectVariantResolved = "evt.storefront.variant.resolved.v1"

	envelopeVersion = "1.0.0"
)

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher wraps a NATS connection and provides helpers for publishing canonical events.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	subject string
	service string
}

// New creates a new Publisher with JetStream enabled.
func New(nc *nats.Conn, subject, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		subject: subject,
		service: service,
	}, nil
}

// Attach forwards engine events from bus to NATS.
func (p *Publisher) Attach(bus *eventbus.EventBus) {
	eventbus.SubscribeTyped(bus, model.EventRatesRefreshed, func(e model.RatesRefreshed) {
		if err := p.PublishRatesRefreshed(context.Background(), e); err != nil {
			logger.S().Warnw("publisher.rates_refreshed_failed", "error", err)
		}
	})
	eventbus.SubscribeTyped(bus, model.EventVariantResolved, func(e model.VariantResolved) {
		if err := p.PublishVariantResolved(context.Background(), e); err != nil {
			logger.S().Warnw("publisher.variant_resolved_failed", "variant_id", e.VariantID, "error", err)
		}
	})
}

// PublishEnvelope serializes and publishes a canonical event envelope to NATS.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) envelope(subject, eventType string, payload any) (*model.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         subject,
		EventType:     eventType,
		Version:       envelopeVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}

// PublishRatesRefreshed emits rates.refreshed after a table swap.
func (p *Publisher) PublishRatesRefreshed(ctx context.Context, e model.RatesRefreshed) error {
	env, err := p.envelope(SubjectRatesRefreshed, model.EventRatesRefreshed, e)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, SubjectRatesRefreshed, env)
}

// PublishVariantResolved emits variant.resolved for a storefront view.
func (p *Publisher) PublishVariantResolved(ctx context.Context, e model.VariantResolved) error {
	env, err := p.envelope(SubjectVariantResolved, model.EventVariantResolved, e)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, SubjectVariantResolved, env)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
