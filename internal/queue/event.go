// Package queue carries seat inventory notifications over RabbitMQ.
// Each notification kind has its own durable queue named after the
// kind.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Queue names, one per notification kind.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueuePaymentRefunded  = "payment.refunded"
)

// Queues lists every queue the notifier consumes.
var Queues = []string{QueueBookingConfirmed, QueueBookingCancelled, QueuePaymentRefunded}

// BookingEvent is published when a booking is confirmed or cancelled.
// It carries enough for downstream consumers to notify the customer
// without querying the primary database.
type BookingEvent struct {
	BookingID        uint64   `json:"booking_id"`
	UserID           uint64   `json:"user_id"`
	ShowID           uint64   `json:"show_id"`
	Status           string   `json:"status"`
	ShowSeatIDs      []uint64 `json:"show_seat_ids"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	TransactionID    string   `json:"transaction_id,omitempty"`
	BookedAt         string   `json:"booked_at"`
	OccurredAt       string   `json:"occurred_at"`
}

// RefundEvent is published when a captured payment was refunded.
type RefundEvent struct {
	UserID        uint64 `json:"user_id"`
	Email         string `json:"email"`
	BookingID     uint64 `json:"booking_id,omitempty"`
	TransactionID string `json:"transaction_id"`
	AmountCents   uint32 `json:"amount_cents"`
	Reason        string `json:"reason"`
	OccurredAt    string `json:"occurred_at"`
}

// NewBookingEvent snapshots b.
func NewBookingEvent(b *model.Booking, at time.Time) BookingEvent {
	ev := BookingEvent{
		BookingID:        b.ID,
		UserID:           b.UserID,
		ShowID:           b.ShowID,
		Status:           b.Status,
		ShowSeatIDs:      b.ShowSeatIDs(),
		TotalAmountCents: b.TotalAmountCents,
		BookedAt:         b.BookedAt.UTC().Format(time.RFC3339),
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if b.TransactionID != nil {
		ev.TransactionID = *b.TransactionID
	}
	return ev
}
