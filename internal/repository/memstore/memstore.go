// Package memstore is an in-memory implementation of repository.Store.
// It keeps the same optimistic concurrency contract as the MySQL store:
// writes are buffered per transaction, every versioned write records the
// version it was based on, and commit re-validates those versions under
// a single lock so the first transaction to commit wins and the loser
// aborts with repository.ErrStaleWrite without applying anything.
//
// It backs the service tests and the STORE_DRIVER=memory mode.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// FaultFunc is consulted before selected writes; a non-nil error is
// returned from the write as-is.  op is the Tx method name.
type FaultFunc func(op string, id uint64) error

// Store holds committed state.
type Store struct {
	mu         sync.Mutex
	nextID     uint64
	shows      map[uint64]model.Show
	seats      map[uint64]model.Seat
	users      map[uint64]model.User
	showSeats  map[uint64]model.ShowSeat
	holds      map[uint64]model.SeatHold
	bookings   map[uint64]model.Booking
	bookingRev map[uint64]uint64
	fault      FaultFunc
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		shows:      map[uint64]model.Show{},
		seats:      map[uint64]model.Seat{},
		users:      map[uint64]model.User{},
		showSeats:  map[uint64]model.ShowSeat{},
		holds:      map[uint64]model.SeatHold{},
		bookings:   map[uint64]model.Booking{},
		bookingRev: map[uint64]uint64{},
	}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// AddShow stores a catalog show, assigning an ID when it is zero.
func (s *Store) AddShow(show model.Show) model.Show {
	s.mu.Lock()
	defer s.mu.Unlock()
	if show.ID == 0 {
		show.ID = s.id()
	} else if show.ID > s.nextID {
		s.nextID = show.ID
	}
	s.shows[show.ID] = show
	return show
}

// AddSeat stores a catalog seat, assigning an ID when it is zero.
func (s *Store) AddSeat(seat model.Seat) model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seat.ID == 0 {
		seat.ID = s.id()
	} else if seat.ID > s.nextID {
		s.nextID = seat.ID
	}
	s.seats[seat.ID] = seat
	return seat
}

// AddUser stores a user, assigning an ID when it is zero.
func (s *Store) AddUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	s.users[u.ID] = u
	return u
}

// SetFault installs (or clears, with nil) a write fault hook.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// ShowSeat returns the committed state of a show seat.
func (s *Store) ShowSeat(id uint64) (model.ShowSeat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.showSeats[id]
	return cloneShowSeat(ss), ok
}

// Hold returns the committed state of a hold.
func (s *Store) Hold(id uint64) (model.SeatHold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[id]
	return cloneHold(h), ok
}

// Bookings returns every committed booking ordered by id.
func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithTx runs fn against a buffered transaction and commits it when fn
// returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s)
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) checkFault(op string, id uint64) error {
	s.mu.Lock()
	f := s.fault
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f(op, id)
}

func cloneShowSeat(ss model.ShowSeat) model.ShowSeat {
	if ss.LockedUntil != nil {
		t := *ss.LockedUntil
		ss.LockedUntil = &t
	}
	if ss.LockedByUserID != nil {
		u := *ss.LockedByUserID
		ss.LockedByUserID = &u
	}
	return ss
}

func cloneHold(h model.SeatHold) model.SeatHold {
	if h.SeatIDs != nil {
		h.SeatIDs = append([]uint64(nil), h.SeatIDs...)
	}
	return h
}

func cloneBooking(b model.Booking) model.Booking {
	if b.TransactionID != nil {
		ref := *b.TransactionID
		b.TransactionID = &ref
	}
	if b.Seats != nil {
		b.Seats = append([]model.BookingSeat(nil), b.Seats...)
	}
	return b
}

func now() time.Time { return time.Now().UTC() }
