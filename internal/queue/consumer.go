package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
)

// Formatter turns a message body into one log line (without newline).
type Formatter func(body []byte) (string, error)

// Consumer reads a durable queue and appends one line per message to
// Dir/File.  Malformed messages are rejected without requeue.
type Consumer struct {
	URL    string
	Queue  string
	Dir    string
	File   string
	Format Formatter
	Log    *logger.Logger
}

// Consumers returns the cancellation and sale consumers for cfg.
func Consumers(cfg config.NotifyConfig, log *logger.Logger) []*Consumer {
	return []*Consumer{
		{URL: cfg.RabbitURL, Queue: cfg.Queue, Dir: cfg.LogDir, File: "notifications.log", Format: FormatCancellation, Log: log},
		{URL: cfg.RabbitURL, Queue: cfg.SaleQueue, Dir: cfg.LogDir, File: "booking.log", Format: FormatSale, Log: log},
	}
}

// Run dials the broker and consumes until ctx is done, reconnecting with
// exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log.WithFields(map[string]any{"queue": c.Queue})
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.WithError(err).Warn("consumer dial failed", "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("consumer set QoS failed", "queue", c.Queue)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.Log.WithError(err).Warn("consumer rejected message", "queue", c.Queue)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle formats body and appends it to the consumer's log file.
func (c *Consumer) Handle(body []byte) error {
	line, err := c.Format(body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.Dir, c.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatCancellation renders a ScreeningCancelledEvent.
func FormatCancellation(body []byte) (string, error) {
	var ev ScreeningCancelledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if ev.TicketID == 0 {
		return "", errors.New("cancellation without ticket_id")
	}
	return fmt.Sprintf("[%s] Screening cancelled | ticket_id=%d | user_id=%d | screening_id=%d | movie=%q | hall=%q | starts_at=%s | refund=%d cents | contact=%q",
		ev.CancelledAt, ev.TicketID, ev.UserID, ev.ScreeningID, ev.MovieTitle, ev.HallName, ev.StartsAt, ev.RefundCents, ev.RecipientContact), nil
}

// FormatSale renders a SaleConfirmedEvent.
func FormatSale(body []byte) (string, error) {
	var ev SaleConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if ev.OrderToken == "" {
		return "", errors.New("sale without order_token")
	}
	return fmt.Sprintf("[%s] Sale confirmed | order=%s | user_id=%d | screening_id=%d | movie=%q | hall=%q | total=%d cents | seats=[%s]",
		ev.ConfirmedAt, ev.OrderToken, ev.UserID, ev.ScreeningID, ev.MovieTitle, ev.HallName, ev.AmountCents, strings.Join(ev.Seats, ",")), nil
}
