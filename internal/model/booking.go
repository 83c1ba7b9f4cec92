package model

import "time"

// Booking statuses.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking records a confirmed purchase of one or more show seats
// by a user.  Bookings are only created after payment (or directly
// for immediate bookings) and are never deleted; cancellation flips
// the status and returns the seats to inventory.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking.
//  ShowID           – show being booked.
//  Status           – CONFIRMED or CANCELLED.
//  TotalAmountCents – sum of the seat prices at booking time.
//  TransactionID    – external payment reference, if any.
//  BookedAt         – when the booking was created.
//  UpdatedAt        – last update timestamp.
//  Seats            – the booking_seats rows owned by this booking.
type Booking struct {
	ID               uint64        // bookings.id
	UserID           uint64        // bookings.user_id
	ShowID           uint64        // bookings.show_id
	Status           string        // bookings.status
	TotalAmountCents uint32        // bookings.total_amount_cents
	TransactionID    *string       // bookings.transaction_id (nullable)
	BookedAt         time.Time     // bookings.booked_at
	UpdatedAt        time.Time     // bookings.updated_at
	Seats            []BookingSeat // booking_seats
}

// ShowSeatIDs returns the ids of the show seats linked to the booking.
func (b Booking) ShowSeatIDs() []uint64 {
	ids := make([]uint64, 0, len(b.Seats))
	for _, s := range b.Seats {
		ids = append(ids, s.ShowSeatID)
	}
	return ids
}

// BookingSeat links a booking to one show seat.  A (booking, show
// seat) pair is unique, and a show seat belongs to at most one
// non-cancelled booking at a time.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – reference to the booking.
//  ShowSeatID – show seat that has been booked.
//  PriceCents – price paid for this seat in cents.
type BookingSeat struct {
	ID         uint64 // booking_seats.id
	BookingID  uint64 // booking_seats.booking_id
	ShowSeatID uint64 // booking_seats.show_seat_id
	PriceCents uint32 // booking_seats.price_cents
}
