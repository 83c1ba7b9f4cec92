package model

import "time"

// Show seat statuses.  A LOCKED seat whose lock has lapsed is still
// stored as LOCKED until a writer clears it, but it is logically
// available (see IsAvailable).
const (
	ShowSeatAvailable = "AVAILABLE"
	ShowSeatLocked    = "LOCKED"
	ShowSeatBooked    = "BOOKED"
)

// ShowSeat links a seat to a particular show and tracks
// availability, pricing and versioning.  There is one show_seat
// record for every eligible seat in a hall when a show is
// provisioned.  Version is the optimistic lock token: every state
// changing write is conditioned on the version that was read and
// increments it.
//
// Fields:
//  ID             – primary key identifier.
//  ShowID         – the show to which this seat belongs.
//  SeatID         – the seat being made available.
//  Status         – availability status (AVAILABLE, LOCKED, BOOKED).
//  PriceCents     – price in cents for this particular seat.
//  Version        – optimistic locking counter.
//  LockedUntil    – end of the current lock (nil unless LOCKED).
//  LockedByUserID – user holding the lock (nil unless LOCKED).
//  CreatedAt      – timestamp when the record was created.
//  UpdatedAt      – timestamp when the record was last updated.
type ShowSeat struct {
	ID             uint64     // show_seats.id
	ShowID         uint64     // show_seats.show_id
	SeatID         uint64     // show_seats.seat_id
	Status         string     // show_seats.status
	PriceCents     uint32     // show_seats.price_cents
	Version        uint32     // show_seats.version
	LockedUntil    *time.Time // show_seats.locked_until (nullable)
	LockedByUserID *uint64    // show_seats.locked_by_user_id (nullable)
	CreatedAt      time.Time  // show_seats.created_at
	UpdatedAt      time.Time  // show_seats.updated_at
}

// IsLocked reports whether the seat carries a lock that has not yet
// lapsed at now.
func (s ShowSeat) IsLocked(now time.Time) bool {
	return s.Status == ShowSeatLocked && s.LockedUntil != nil && s.LockedUntil.After(now)
}

// IsLockedByUser reports whether the stored lock belongs to userID,
// regardless of whether it has lapsed.
func (s ShowSeat) IsLockedByUser(userID uint64) bool {
	return s.Status == ShowSeatLocked && s.LockedByUserID != nil && *s.LockedByUserID == userID
}

// IsAvailable reports whether the seat may be claimed at now.
func (s ShowSeat) IsAvailable(now time.Time) bool {
	switch s.Status {
	case ShowSeatAvailable:
		return true
	case ShowSeatLocked:
		return !s.IsLocked(now)
	}
	return false
}

// Lock marks the seat LOCKED for userID until the given time.
func (s *ShowSeat) Lock(userID uint64, until time.Time) {
	uid := userID
	t := until
	s.Status = ShowSeatLocked
	s.LockedByUserID = &uid
	s.LockedUntil = &t
}

// Book marks the seat BOOKED and clears any lock metadata.
func (s *ShowSeat) Book() {
	s.Status = ShowSeatBooked
	s.LockedByUserID = nil
	s.LockedUntil = nil
}

// Release returns the seat to AVAILABLE and clears any lock metadata.
func (s *ShowSeat) Release() {
	s.Status = ShowSeatAvailable
	s.LockedByUserID = nil
	s.LockedUntil = nil
}
