package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/service"
)

// Publisher publishes notifications to RabbitMQ.  It dials lazily,
// keeps one channel open and redials after a failed publish.  It
// implements service.Notifier.
type Publisher struct {
	url string
	log *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

var _ service.Notifier = (*Publisher)(nil)

// NewPublisher returns a publisher for the broker at url.  Nothing is
// dialled until the first Notify.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, now: time.Now, declared: map[string]bool{}}
}

// Notify publishes payload to the queue named kind as a persistent
// JSON message.
func (p *Publisher) Notify(ctx context.Context, kind string, payload any) error {
	body, err := encode(kind, payload, p.now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel(kind)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Type:         kind,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", kind, false, false, pub); err != nil {
		p.resetLocked()
		return fmt.Errorf("rabbitmq: publish %s: %w", kind, err)
	}
	return nil
}

// Close closes the broker connection, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	p.declared = map[string]bool{}
	return err
}

// channel returns an open channel with queue declared.  p.mu is held.
func (p *Publisher) channel(queue string) (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.resetLocked()
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
		}
		p.conn, p.ch = conn, ch
	}
	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.resetLocked()
			return nil, fmt.Errorf("rabbitmq: queue declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	return p.ch, nil
}

func (p *Publisher) resetLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	p.declared = map[string]bool{}
}

// encode converts a service payload into its wire event.
func encode(kind string, payload any, at time.Time) ([]byte, error) {
	var ev any
	switch v := payload.(type) {
	case *model.Booking:
		if v == nil {
			return nil, errors.New("queue: nil booking")
		}
		ev = NewBookingEvent(v, at)
	case service.RefundNotice:
		ev = RefundEvent{
			UserID:        v.UserID,
			Email:         v.Email,
			BookingID:     v.BookingID,
			TransactionID: v.TransactionID,
			AmountCents:   v.AmountCents,
			Reason:        v.Reason,
			OccurredAt:    at.UTC().Format(time.RFC3339),
		}
	default:
		return nil, fmt.Errorf("queue: unsupported payload %T for %s", payload, kind)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal %s: %w", kind, err)
	}
	return body, nil
}
