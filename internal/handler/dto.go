package handler

import (
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// ----- DTOs -----

type seatsReq struct {
	SeatIDs    []uint64 `json:"seat_ids"`
	TTLSeconds int      `json:"ttl_seconds"`
}

type confirmReq struct {
	PaymentMethod string `json:"payment_method"`
}

type bookingSeatPart struct {
	ShowSeatID uint64 `json:"show_seat_id"`
	PriceCents uint32 `json:"price_cents"`
}

type bookingResp struct {
	ID               uint64            `json:"id"`
	ShowID           uint64            `json:"show_id"`
	Status           string            `json:"status"`
	TotalAmountCents uint32            `json:"total_amount_cents"`
	TransactionID    *string           `json:"transaction_id,omitempty"`
	BookedAt         time.Time         `json:"booked_at"`
	Seats            []bookingSeatPart `json:"seats"`
}

type holdResp struct {
	Token     string    `json:"hold_token"`
	ShowID    uint64    `json:"show_id"`
	Status    string    `json:"status"`
	SeatIDs   []uint64  `json:"seat_ids"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toBookingResp(b *model.Booking) bookingResp {
	seats := make([]bookingSeatPart, 0, len(b.Seats))
	for _, s := range b.Seats {
		seats = append(seats, bookingSeatPart{ShowSeatID: s.ShowSeatID, PriceCents: s.PriceCents})
	}
	return bookingResp{
		ID:               b.ID,
		ShowID:           b.ShowID,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		TransactionID:    b.TransactionID,
		BookedAt:         b.BookedAt,
		Seats:            seats,
	}
}

func toHoldResp(h *model.SeatHold) holdResp {
	return holdResp{
		Token:     h.HoldToken,
		ShowID:    h.ShowID,
		Status:    h.Status,
		SeatIDs:   h.SeatIDs,
		ExpiresAt: h.ExpiresAt,
	}
}
