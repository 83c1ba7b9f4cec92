package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// ReservationService claims show seats, either directly as a booking
// or as a time-boxed hold, and releases holds on request.
//
// A claim reads the seats with their versions, validates them and then
// writes each seat conditioned on the version it read.  If another
// writer committed first the whole transaction is rolled back and the
// caller receives ErrConflict; nothing is retried here.
type ReservationService struct {
	store repository.Store
	deps
}

// NewReservationService builds a ReservationService on store.
func NewReservationService(store repository.Store, opts ...Option) *ReservationService {
	return &ReservationService{store: store, deps: newDeps(opts)}
}

// BookSeats books seatIDs on showID for the user identified by email
// and returns the confirmed booking.
func (s *ReservationService) BookSeats(ctx context.Context, showID uint64, seatIDs []uint64, email string) (booking *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "service.reservation.book_seats")
	span.SetAttributes(attribute.Int64("show_id", int64(showID)), attribute.Int("seats", len(seatIDs)))
	defer func() {
		s.countBooking(ctx, "direct", err)
		endSpan(span, err)
	}()

	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		show, user, err := loadShowAndUser(ctx, tx, showID, email, now)
		if err != nil {
			return err
		}
		seats, err := fetchSeats(ctx, tx, showID, ids)
		if err != nil {
			return err
		}
		if err := requireSeats(seats, func(ss model.ShowSeat) bool { return ss.IsAvailable(now) }); err != nil {
			return err
		}
		booking, err = materializeBooking(ctx, tx, user, show, seats, nil, now)
		return err
	})
	if err != nil {
		booking = nil
		err = translate(err)
		s.log.Info("book seats rejected", zap.Uint64("show_id", showID), zap.Uint64s("seat_ids", ids), zap.Error(err))
		return nil, err
	}
	s.log.Info("seats booked",
		zap.Uint64("booking_id", booking.ID),
		zap.Uint64("show_id", showID),
		zap.Uint64s("seat_ids", ids),
		zap.Uint32("total_amount_cents", booking.TotalAmountCents))
	s.notify(NotifyBookingConfirmed, booking)
	return booking, nil
}

// HoldSeats locks seatIDs on showID for ttl on behalf of the user and
// returns the new hold.  A seat whose lock is still live, whoever owns
// it, is rejected.
func (s *ReservationService) HoldSeats(ctx context.Context, showID uint64, seatIDs []uint64, email string, ttl time.Duration) (hold *model.SeatHold, err error) {
	ctx, span := s.tracer.Start(ctx, "service.reservation.hold_seats")
	span.SetAttributes(attribute.Int64("show_id", int64(showID)), attribute.Int("seats", len(seatIDs)))
	defer func() { endSpan(span, err) }()

	if ttl <= 0 {
		return nil, fmt.Errorf("%w: hold ttl must be positive", ErrInvalidRequest)
	}
	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		_, user, err := loadShowAndUser(ctx, tx, showID, email, now)
		if err != nil {
			return err
		}
		seats, err := fetchSeats(ctx, tx, showID, ids)
		if err != nil {
			return err
		}
		if err := requireSeats(seats, func(ss model.ShowSeat) bool { return ss.IsAvailable(now) }); err != nil {
			return err
		}

		expiresAt := now.Add(ttl)
		for i := range seats {
			seats[i].Lock(user.ID, expiresAt)
			if err := tx.UpdateShowSeat(ctx, &seats[i]); err != nil {
				return staleSeat(err, seats[i].ID)
			}
		}
		hold = &model.SeatHold{
			HoldToken: s.newToken(),
			UserID:    user.ID,
			ShowID:    showID,
			SeatIDs:   ids,
			Status:    model.HoldActive,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}
		return tx.CreateHold(ctx, hold)
	})
	if err != nil {
		err = translate(err)
		s.log.Info("hold seats rejected", zap.Uint64("show_id", showID), zap.Uint64s("seat_ids", ids), zap.Error(err))
		return nil, err
	}
	s.log.Info("seats held",
		zap.Uint64("hold_id", hold.ID),
		zap.Uint64("show_id", showID),
		zap.Uint64s("seat_ids", ids),
		zap.Time("expires_at", hold.ExpiresAt))
	return hold, nil
}

// ReleaseHold cancels a live hold owned by the user.  Seats the hold
// still owns return to AVAILABLE in the same transaction.
func (s *ReservationService) ReleaseHold(ctx context.Context, token, email string) (hold *model.SeatHold, err error) {
	ctx, span := s.tracer.Start(ctx, "service.reservation.release_hold")
	defer func() { endSpan(span, err) }()

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		user, err := loadUser(ctx, tx, email)
		if err != nil {
			return err
		}
		hold, err = tx.HoldByToken(ctx, token)
		if err != nil {
			return err
		}
		if hold.UserID != user.ID {
			return fmt.Errorf("%w: hold belongs to another user", ErrForbidden)
		}
		if !hold.IsActive(now) {
			return fmt.Errorf("%w: hold is %s", ErrSeatHoldExpired, describeHold(*hold, now))
		}
		if _, err := ReleaseHoldSeats(ctx, tx, *hold); err != nil {
			return err
		}
		return tx.UpdateHoldStatus(ctx, hold, model.HoldReleased)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("hold released", zap.Uint64("hold_id", hold.ID), zap.Uint64s("seat_ids", hold.SeatIDs))
	return hold, nil
}

func (s *ReservationService) countBooking(ctx context.Context, flow string, err error) {
	attrs := metric.WithAttributes(attribute.String("flow", flow))
	if err != nil {
		s.failure.Add(ctx, 1, attrs)
		return
	}
	s.success.Add(ctx, 1, attrs)
}

// loadShowAndUser resolves the show and the caller and rejects shows
// that have already started.
func loadShowAndUser(ctx context.Context, tx repository.Tx, showID uint64, email string, now time.Time) (*model.Show, *model.User, error) {
	show, err := tx.GetShow(ctx, showID)
	if err != nil {
		return nil, nil, err
	}
	if show.HasStarted(now) {
		return nil, nil, fmt.Errorf("%w: show %d has already started", ErrInvalidOperation, showID)
	}
	user, err := loadUser(ctx, tx, email)
	if err != nil {
		return nil, nil, err
	}
	return show, user, nil
}

func loadUser(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: user email is required", ErrInvalidRequest)
	}
	user, err := tx.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", ErrForbidden)
	}
	return user, nil
}

// fetchSeats loads the requested show seats; every id must belong to
// the show.
func fetchSeats(ctx context.Context, tx repository.Tx, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	seats, err := tx.ShowSeatsByIDs(ctx, showID, ids)
	if err != nil {
		return nil, err
	}
	if len(seats) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d seats do not belong to show %d",
			ErrInvalidRequest, len(ids)-len(seats), len(ids), showID)
	}
	return seats, nil
}

// requireSeats fails with a SeatsUnavailableError listing every seat
// for which ok is false.
func requireSeats(seats []model.ShowSeat, ok func(model.ShowSeat) bool) error {
	var blocked []uint64
	for _, ss := range seats {
		if !ok(ss) {
			blocked = append(blocked, ss.ID)
		}
	}
	if len(blocked) > 0 {
		return &SeatsUnavailableError{ShowSeatIDs: blocked}
	}
	return nil
}

// staleSeat reports a lost version race on one seat as unavailable.
func staleSeat(err error, id uint64) error {
	if errors.Is(err, repository.ErrStaleWrite) {
		return &SeatsUnavailableError{ShowSeatIDs: []uint64{id}}
	}
	return err
}

// materializeBooking creates a CONFIRMED booking for seats, marks each
// seat BOOKED under its version guard and links the booking seats.
func materializeBooking(ctx context.Context, tx repository.Tx, user *model.User, show *model.Show, seats []model.ShowSeat, transactionID *string, now time.Time) (*model.Booking, error) {
	var total uint32
	for _, ss := range seats {
		total += ss.PriceCents
	}
	booking := &model.Booking{
		UserID:           user.ID,
		ShowID:           show.ID,
		Status:           model.BookingConfirmed,
		TotalAmountCents: total,
		TransactionID:    transactionID,
		BookedAt:         now,
	}
	if err := tx.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}
	links := make([]model.BookingSeat, 0, len(seats))
	for i := range seats {
		seats[i].Book()
		if err := tx.UpdateShowSeat(ctx, &seats[i]); err != nil {
			return nil, staleSeat(err, seats[i].ID)
		}
		links = append(links, model.BookingSeat{ShowSeatID: seats[i].ID, PriceCents: seats[i].PriceCents})
	}
	if err := tx.CreateBookingSeats(ctx, booking.ID, links); err != nil {
		return nil, err
	}
	booking.Seats = links
	return booking, nil
}

// ReleaseHoldSeats returns every seat still owned by hold to AVAILABLE
// and reports how many were released.  Seats since claimed by anyone
// else are left untouched.
func ReleaseHoldSeats(ctx context.Context, tx repository.Tx, hold model.SeatHold) (int, error) {
	if len(hold.SeatIDs) == 0 {
		return 0, nil
	}
	seats, err := tx.ShowSeatsByIDs(ctx, hold.ShowID, hold.SeatIDs)
	if err != nil {
		return 0, err
	}
	released := 0
	for i := range seats {
		if !hold.Owns(seats[i]) {
			continue
		}
		seats[i].Release()
		if err := tx.UpdateShowSeat(ctx, &seats[i]); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

func describeHold(h model.SeatHold, now time.Time) string {
	if h.Status == model.HoldActive && h.IsExpired(now) {
		return "expired"
	}
	return h.Status
}
