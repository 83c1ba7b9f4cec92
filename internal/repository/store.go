package repository

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Store is the seat inventory's single source of truth.  Every
// operation runs inside WithTx: nothing written through the Tx is
// visible to other transactions until fn returns nil and the
// transaction commits.  If fn returns an error, or the commit fails,
// every write made through the Tx is discarded.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx groups the queries the core issues inside one transaction.
type Tx interface {
	Catalog
	ShowSeats
	Holds
	Bookings
}

// Catalog exposes the read-only records owned by the catalog.
type Catalog interface {
	GetShow(ctx context.Context, showID uint64) (*model.Show, error)
	SeatsByHall(ctx context.Context, hallID uint64) ([]model.Seat, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// ShowSeats manages per-show seat inventory.  UpdateShowSeat is a
// compare-and-swap on seat.Version; on success seat.Version is
// incremented in place.  DeleteShowSeats never removes a BOOKED seat
// and fails with ErrConflict while the show has any.
type ShowSeats interface {
	CreateShowSeats(ctx context.Context, seats []model.ShowSeat) error
	ListShowSeats(ctx context.Context, showID uint64) ([]model.ShowSeat, error)
	ShowSeatsByIDs(ctx context.Context, showID uint64, ids []uint64) ([]model.ShowSeat, error)
	UpdateShowSeat(ctx context.Context, seat *model.ShowSeat) error
	DeleteShowSeats(ctx context.Context, showID uint64) (int64, error)
}

// Holds manages seat holds.  UpdateHoldStatus is a compare-and-swap on
// hold.Version; on success the status and version are updated in
// place.
type Holds interface {
	CreateHold(ctx context.Context, hold *model.SeatHold) error
	HoldByToken(ctx context.Context, token string) (*model.SeatHold, error)
	HoldByID(ctx context.Context, id uint64) (*model.SeatHold, error)
	UpdateHoldStatus(ctx context.Context, hold *model.SeatHold, status string) error
	ExpiredHolds(ctx context.Context, now time.Time, statuses []string, limit int) ([]model.SeatHold, error)
	ExpireHoldsBulk(ctx context.Context, now time.Time) ([]model.SeatHold, error)
}

// Bookings manages bookings and their seats.  UpdateBookingStatus only
// matches a booking currently in status from and returns ErrStaleWrite
// otherwise.
type Bookings interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	CreateBookingSeats(ctx context.Context, bookingID uint64, seats []model.BookingSeat) error
	BookingByID(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, from, to string) error
	CountBookingsByShow(ctx context.Context, showID uint64, status string) (int, error)
}
