package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// tx buffers writes until commit.  The expect maps hold the committed
// version each overlaid row was read at; commit fails when any of them
// moved.
type tx struct {
	s *Store

	showSeats    map[uint64]model.ShowSeat
	newShowSeats map[uint64]bool
	deleted      map[uint64]bool
	seatExpect   map[uint64]uint32

	holds      map[uint64]model.SeatHold
	newHolds   map[uint64]bool
	holdExpect map[uint64]uint32

	bookings      map[uint64]model.Booking
	newBookings   map[uint64]bool
	bookingExpect map[uint64]uint64
}

var _ repository.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		s:             s,
		showSeats:     map[uint64]model.ShowSeat{},
		newShowSeats:  map[uint64]bool{},
		deleted:       map[uint64]bool{},
		seatExpect:    map[uint64]uint32{},
		holds:         map[uint64]model.SeatHold{},
		newHolds:      map[uint64]bool{},
		holdExpect:    map[uint64]uint32{},
		bookings:      map[uint64]model.Booking{},
		newBookings:   map[uint64]bool{},
		bookingExpect: map[uint64]uint64{},
	}
}

func (t *tx) nextID() uint64 {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.id()
}

// ---- catalog ----

func (t *tx) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	show, ok := t.s.shows[showID]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	return &show, nil
}

func (t *tx) SeatsByHall(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.Seat
	for _, seat := range t.s.seats {
		if seat.HallID == hallID {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowLabel != out[j].RowLabel {
			return out[i].RowLabel < out[j].RowLabel
		}
		return out[i].SeatNumber < out[j].SeatNumber
	})
	return out, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, u := range t.s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ---- show seats ----

func (t *tx) showSeat(id uint64) (model.ShowSeat, bool) {
	if t.deleted[id] {
		return model.ShowSeat{}, false
	}
	if ss, ok := t.showSeats[id]; ok {
		return cloneShowSeat(ss), true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ss, ok := t.s.showSeats[id]
	return cloneShowSeat(ss), ok
}

// visibleShowSeats merges committed rows with this transaction's writes.
func (t *tx) visibleShowSeats(showID uint64) []model.ShowSeat {
	t.s.mu.Lock()
	var out []model.ShowSeat
	for id, ss := range t.s.showSeats {
		if ss.ShowID != showID || t.deleted[id] {
			continue
		}
		if _, ok := t.showSeats[id]; ok {
			continue
		}
		out = append(out, cloneShowSeat(ss))
	}
	t.s.mu.Unlock()
	for _, ss := range t.showSeats {
		if ss.ShowID == showID {
			out = append(out, cloneShowSeat(ss))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *tx) CreateShowSeats(ctx context.Context, seats []model.ShowSeat) error {
	if err := t.s.checkFault("CreateShowSeats", 0); err != nil {
		return err
	}
	taken := map[[2]uint64]bool{}
	loaded := map[uint64]bool{}
	for i := range seats {
		showID := seats[i].ShowID
		if loaded[showID] {
			continue
		}
		loaded[showID] = true
		for _, ss := range t.visibleShowSeats(showID) {
			taken[[2]uint64{ss.ShowID, ss.SeatID}] = true
		}
	}
	ts := now()
	for i := range seats {
		key := [2]uint64{seats[i].ShowID, seats[i].SeatID}
		if taken[key] {
			return fmt.Errorf("%w: show %d already has seat %d", repository.ErrConflict, key[0], key[1])
		}
		taken[key] = true
		seats[i].ID = t.nextID()
		seats[i].CreatedAt = ts
		seats[i].UpdatedAt = ts
		t.showSeats[seats[i].ID] = cloneShowSeat(seats[i])
		t.newShowSeats[seats[i].ID] = true
	}
	return nil
}

func (t *tx) ListShowSeats(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
	return t.visibleShowSeats(showID), nil
}

func (t *tx) ShowSeatsByIDs(ctx context.Context, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	seen := map[uint64]bool{}
	out := make([]model.ShowSeat, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if ss, ok := t.showSeat(id); ok && ss.ShowID == showID {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateShowSeat(ctx context.Context, seat *model.ShowSeat) error {
	if err := t.s.checkFault("UpdateShowSeat", seat.ID); err != nil {
		return err
	}
	cur, ok := t.showSeat(seat.ID)
	if !ok || cur.Version != seat.Version {
		return repository.ErrStaleWrite
	}
	if _, tracked := t.seatExpect[seat.ID]; !tracked && !t.newShowSeats[seat.ID] {
		t.seatExpect[seat.ID] = cur.Version
	}
	updated := cloneShowSeat(*seat)
	updated.Version = seat.Version + 1
	updated.UpdatedAt = now()
	t.showSeats[seat.ID] = updated
	seat.Version = updated.Version
	seat.UpdatedAt = updated.UpdatedAt
	return nil
}

func (t *tx) DeleteShowSeats(ctx context.Context, showID uint64) (int64, error) {
	if err := t.s.checkFault("DeleteShowSeats", showID); err != nil {
		return 0, err
	}
	var n int64
	booked := 0
	for _, ss := range t.visibleShowSeats(showID) {
		if ss.Status == model.ShowSeatBooked {
			booked++
			continue
		}
		if t.newShowSeats[ss.ID] {
			delete(t.newShowSeats, ss.ID)
		} else {
			if _, tracked := t.seatExpect[ss.ID]; !tracked {
				t.seatExpect[ss.ID] = ss.Version
			}
			t.deleted[ss.ID] = true
		}
		delete(t.showSeats, ss.ID)
		n++
	}
	if booked > 0 {
		return 0, fmt.Errorf("%w: show %d has %d booked seats", repository.ErrConflict, showID, booked)
	}
	return n, nil
}

// ---- holds ----

func (t *tx) hold(id uint64) (model.SeatHold, bool) {
	if h, ok := t.holds[id]; ok {
		return cloneHold(h), true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	h, ok := t.s.holds[id]
	return cloneHold(h), ok
}

func (t *tx) visibleHolds() []model.SeatHold {
	t.s.mu.Lock()
	out := make([]model.SeatHold, 0, len(t.s.holds)+len(t.holds))
	for id, h := range t.s.holds {
		if _, ok := t.holds[id]; ok {
			continue
		}
		out = append(out, cloneHold(h))
	}
	t.s.mu.Unlock()
	for _, h := range t.holds {
		out = append(out, cloneHold(h))
	}
	return out
}

func (t *tx) CreateHold(ctx context.Context, hold *model.SeatHold) error {
	if err := t.s.checkFault("CreateHold", 0); err != nil {
		return err
	}
	for _, h := range t.visibleHolds() {
		if h.HoldToken == hold.HoldToken {
			return fmt.Errorf("%w: duplicate hold token", repository.ErrConflict)
		}
	}
	hold.ID = t.nextID()
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = now()
	}
	t.holds[hold.ID] = cloneHold(*hold)
	t.newHolds[hold.ID] = true
	return nil
}

func (t *tx) HoldByToken(ctx context.Context, token string) (*model.SeatHold, error) {
	for _, h := range t.visibleHolds() {
		if h.HoldToken == token {
			hold := h
			return &hold, nil
		}
	}
	return nil, repository.ErrHoldNotFound
}

func (t *tx) HoldByID(ctx context.Context, id uint64) (*model.SeatHold, error) {
	h, ok := t.hold(id)
	if !ok {
		return nil, repository.ErrHoldNotFound
	}
	return &h, nil
}

func (t *tx) UpdateHoldStatus(ctx context.Context, hold *model.SeatHold, status string) error {
	if err := t.s.checkFault("UpdateHoldStatus", hold.ID); err != nil {
		return err
	}
	cur, ok := t.hold(hold.ID)
	if !ok || cur.Version != hold.Version {
		return repository.ErrStaleWrite
	}
	if _, tracked := t.holdExpect[hold.ID]; !tracked && !t.newHolds[hold.ID] {
		t.holdExpect[hold.ID] = cur.Version
	}
	cur.Status = status
	cur.Version++
	t.holds[hold.ID] = cur
	hold.Status = cur.Status
	hold.Version = cur.Version
	return nil
}

func (t *tx) ExpiredHolds(ctx context.Context, at time.Time, statuses []string, limit int) ([]model.SeatHold, error) {
	want := map[string]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []model.SeatHold
	for _, h := range t.visibleHolds() {
		if want[h.Status] && !h.ExpiresAt.After(at) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) ExpireHoldsBulk(ctx context.Context, at time.Time) ([]model.SeatHold, error) {
	if err := t.s.checkFault("ExpireHoldsBulk", 0); err != nil {
		return nil, err
	}
	expired, err := t.ExpiredHolds(ctx, at, []string{model.HoldActive}, 0)
	if err != nil {
		return nil, err
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	for i := range expired {
		h := &expired[i]
		if _, tracked := t.holdExpect[h.ID]; !tracked && !t.newHolds[h.ID] {
			t.holdExpect[h.ID] = h.Version
		}
		h.Status = model.HoldExpired
		h.Version++
		t.holds[h.ID] = cloneHold(*h)
	}
	return expired, nil
}

// ---- bookings ----

func (t *tx) booking(id uint64) (model.Booking, bool) {
	if b, ok := t.bookings[id]; ok {
		return cloneBooking(b), true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[id]
	return cloneBooking(b), ok
}

// touchBooking records the revision of a committed booking before this
// transaction first overlays it.
func (t *tx) touchBooking(id uint64) {
	if t.newBookings[id] {
		return
	}
	if _, tracked := t.bookingExpect[id]; tracked {
		return
	}
	t.s.mu.Lock()
	t.bookingExpect[id] = t.s.bookingRev[id]
	t.s.mu.Unlock()
}

func (t *tx) CreateBooking(ctx context.Context, b *model.Booking) error {
	if err := t.s.checkFault("CreateBooking", 0); err != nil {
		return err
	}
	b.ID = t.nextID()
	ts := now()
	if b.BookedAt.IsZero() {
		b.BookedAt = ts
	}
	b.UpdatedAt = ts
	t.bookings[b.ID] = cloneBooking(*b)
	t.newBookings[b.ID] = true
	return nil
}

func (t *tx) CreateBookingSeats(ctx context.Context, bookingID uint64, seats []model.BookingSeat) error {
	if err := t.s.checkFault("CreateBookingSeats", bookingID); err != nil {
		return err
	}
	b, ok := t.booking(bookingID)
	if !ok {
		return repository.ErrBookingNotFound
	}
	t.touchBooking(bookingID)
	have := map[uint64]bool{}
	for _, bs := range b.Seats {
		have[bs.ShowSeatID] = true
	}
	for i := range seats {
		if have[seats[i].ShowSeatID] {
			return fmt.Errorf("%w: seat %d already on booking %d", repository.ErrConflict, seats[i].ShowSeatID, bookingID)
		}
		have[seats[i].ShowSeatID] = true
		seats[i].ID = t.nextID()
		seats[i].BookingID = bookingID
		b.Seats = append(b.Seats, seats[i])
	}
	t.bookings[bookingID] = b
	return nil
}

func (t *tx) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.booking(id)
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (t *tx) UpdateBookingStatus(ctx context.Context, id uint64, from, to string) error {
	if err := t.s.checkFault("UpdateBookingStatus", id); err != nil {
		return err
	}
	b, ok := t.booking(id)
	if !ok || b.Status != from {
		return repository.ErrStaleWrite
	}
	t.touchBooking(id)
	b.Status = to
	b.UpdatedAt = now()
	t.bookings[id] = b
	return nil
}

func (t *tx) CountBookingsByShow(ctx context.Context, showID uint64, status string) (int, error) {
	t.s.mu.Lock()
	n := 0
	for id, b := range t.s.bookings {
		if _, ok := t.bookings[id]; ok {
			continue
		}
		if b.ShowID == showID && b.Status == status {
			n++
		}
	}
	t.s.mu.Unlock()
	for _, b := range t.bookings {
		if b.ShowID == showID && b.Status == status {
			n++
		}
	}
	return n, nil
}

// ---- commit ----

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, v := range t.seatExpect {
		if cur, ok := s.showSeats[id]; !ok || cur.Version != v {
			return repository.ErrStaleWrite
		}
	}
	for id, v := range t.holdExpect {
		if cur, ok := s.holds[id]; !ok || cur.Version != v {
			return repository.ErrStaleWrite
		}
	}
	for id, rev := range t.bookingExpect {
		if _, ok := s.bookings[id]; !ok || s.bookingRev[id] != rev {
			return repository.ErrStaleWrite
		}
	}

	// Unique (show_id, seat_id) and hold_token against rows other
	// transactions committed meanwhile.
	if len(t.newShowSeats) > 0 {
		taken := map[[2]uint64]bool{}
		for id, ss := range s.showSeats {
			if !t.deleted[id] {
				taken[[2]uint64{ss.ShowID, ss.SeatID}] = true
			}
		}
		for id := range t.newShowSeats {
			ss := t.showSeats[id]
			if taken[[2]uint64{ss.ShowID, ss.SeatID}] {
				return repository.ErrConflict
			}
		}
	}
	if len(t.newHolds) > 0 {
		tokens := map[string]bool{}
		for _, h := range s.holds {
			tokens[h.HoldToken] = true
		}
		for id := range t.newHolds {
			if tokens[t.holds[id].HoldToken] {
				return repository.ErrConflict
			}
		}
	}

	for id := range t.deleted {
		delete(s.showSeats, id)
	}
	for id, ss := range t.showSeats {
		s.showSeats[id] = ss
	}
	for id, h := range t.holds {
		s.holds[id] = h
	}
	for id, b := range t.bookings {
		s.bookings[id] = b
		s.bookingRev[id]++
	}
	return nil
}
