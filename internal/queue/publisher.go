package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/service"
)

// Publisher sends notices to durable queues on the default exchange.  It
// dials per publish: notices are rare and a broken connection must never
// outlive one call.
type Publisher struct {
	url         string
	cancelQueue string
	saleQueue   string
	log         *logger.Logger

	send func(ctx context.Context, queue string, body []byte) error
}

var _ service.Notifier = (*Publisher)(nil)

// NewPublisher builds a Publisher from the notify configuration.
func NewPublisher(cfg config.NotifyConfig, log *logger.Logger) *Publisher {
	p := &Publisher{url: cfg.RabbitURL, cancelQueue: cfg.Queue, saleQueue: cfg.SaleQueue, log: log}
	p.send = p.publish
	return p
}

// NotifyCancellation publishes one ScreeningCancelledEvent.
func (p *Publisher) NotifyCancellation(ctx context.Context, n model.CancellationNotice) error {
	body, err := json.Marshal(NewScreeningCancelledEvent(n, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal cancellation: %w", err)
	}
	return p.send(ctx, p.cancelQueue, body)
}

// NotifySaleConfirmed publishes one SaleConfirmedEvent.
func (p *Publisher) NotifySaleConfirmed(ctx context.Context, e service.SaleConfirmed) error {
	body, err := json.Marshal(SaleConfirmedEvent(e))
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}
	return p.send(ctx, p.saleQueue, body)
}

// publish returns failures to the caller, which owns the warning.
func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	p.log.Debug("notice published", "queue", queue, "bytes", len(body))
	return nil
}
