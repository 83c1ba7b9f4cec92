package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one delivery from queue.  A returned error rejects
// the message without requeueing it.
type Handler func(queue string, body []byte) error

// Consume connects to the broker at url, declares every queue in Queues
// and hands deliveries to h until ctx is cancelled.  Lost connections
// are redialled with exponential backoff.
func Consume(ctx context.Context, url string, h Handler, log *zap.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("notifier: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("notifier: consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, h Handler, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("notifier: set QoS failed", zap.Error(err))
	}

	type delivery struct {
		queue string
		d     amqp.Delivery
	}
	merged := make(chan delivery)
	var wg sync.WaitGroup
	for _, q := range Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		wg.Add(1)
		go func(q string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range msgs {
				select {
				case merged <- delivery{queue: q, d: d}:
				case <-ctx.Done():
					return
				}
			}
		}(q, msgs)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-merged:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := h(m.queue, m.d.Body); err != nil {
				log.Warn("notifier: handle message failed", zap.String("queue", m.queue), zap.Error(err))
				_ = m.d.Nack(false, false)
				continue
			}
			_ = m.d.Ack(false)
		}
	}
}

// FileHandler appends one human readable line per notification to the
// file at path, creating parent directories as needed.
func FileHandler(path string) Handler {
	var mu sync.Mutex
	return func(queue string, body []byte) error {
		line, err := formatLine(queue, body)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("mkdir logs: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	}
}

func formatLine(queue string, body []byte) (string, error) {
	switch queue {
	case QueueBookingConfirmed, QueueBookingCancelled:
		var ev BookingEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		verb := "Booking confirmed"
		if queue == QueueBookingCancelled {
			verb = "Booking cancelled"
		}
		return fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | show_id=%d | total=%d cents | seats=%v\n",
			ev.OccurredAt, verb, ev.BookingID, ev.UserID, ev.ShowID, ev.TotalAmountCents, ev.ShowSeatIDs), nil
	case QueuePaymentRefunded:
		var ev RefundEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Refund issued | user=%q | booking_id=%d | transaction=%s | amount=%d cents | reason=%q\n",
			ev.OccurredAt, ev.Email, ev.BookingID, ev.TransactionID, ev.AmountCents, ev.Reason), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}
