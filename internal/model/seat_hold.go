package model

import "time"

// Seat hold statuses.  CONFIRMED, RELEASED and EXPIRED are terminal.
const (
	HoldActive         = "ACTIVE"
	HoldPaymentPending = "PAYMENT_PENDING"
	HoldConfirmed      = "CONFIRMED"
	HoldReleased       = "RELEASED"
	HoldExpired        = "EXPIRED"
)

// SeatHold represents a time-boxed claim on a set of show seats
// during the checkout process.  The hold token is the external
// handle returned to the client.  The seats covered by a hold live
// in the seat_hold_seats child table and are loaded into SeatIDs.
//
// Fields:
//  ID        – primary key identifier.
//  HoldToken – unique token returned to the client for reference.
//  UserID    – user who owns the hold.
//  ShowID    – show for which the seats are held.
//  SeatIDs   – show_seat ids covered by the hold (unordered set).
//  Status    – ACTIVE, PAYMENT_PENDING, CONFIRMED, RELEASED or EXPIRED.
//  Version   – optimistic locking counter.
//  CreatedAt – when the hold was created.
//  ExpiresAt – when the hold expires.
type SeatHold struct {
	ID        uint64    // seat_holds.id
	HoldToken string    // seat_holds.hold_token
	UserID    uint64    // seat_holds.user_id
	ShowID    uint64    // seat_holds.show_id
	SeatIDs   []uint64  // seat_hold_seats.show_seat_id
	Status    string    // seat_holds.status
	Version   uint32    // seat_holds.version
	CreatedAt time.Time // seat_holds.created_at
	ExpiresAt time.Time // seat_holds.expires_at
}

// IsExpired reports whether the hold's TTL has lapsed at now.  A hold
// whose expiry equals now is expired.
func (h SeatHold) IsExpired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// IsActive reports whether the hold is live: ACTIVE and not expired.
// It consults nothing but the hold itself.
func (h SeatHold) IsActive(now time.Time) bool {
	return h.Status == HoldActive && !h.IsExpired(now)
}

// IsTerminal reports whether the hold can no longer change state.
func (h SeatHold) IsTerminal() bool {
	switch h.Status {
	case HoldConfirmed, HoldReleased, HoldExpired:
		return true
	}
	return false
}

// Owns reports whether ss is still locked on behalf of h: locked by
// h's user with a lock that does not outlive h.  A later hold by the
// same user on the same seat carries a later lock and is not owned by
// an older hold.
func (h SeatHold) Owns(ss ShowSeat) bool {
	return ss.IsLockedByUser(h.UserID) && ss.LockedUntil != nil && !ss.LockedUntil.After(h.ExpiresAt)
}
