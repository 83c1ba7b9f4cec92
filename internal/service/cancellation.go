package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/payment"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// CancellationService cancels confirmed bookings.  Once the seats are
// released the cancellation stands; the refund and the notification
// run afterwards and their failures are only logged.
type CancellationService struct {
	store   repository.Store
	gateway payment.Gateway
	deps
}

// NewCancellationService builds a CancellationService.  gateway may be
// nil when bookings never carry a payment reference.
func NewCancellationService(store repository.Store, gateway payment.Gateway, opts ...Option) *CancellationService {
	return &CancellationService{store: store, gateway: gateway, deps: newDeps(opts)}
}

// CancelBooking cancels bookingID on behalf of the user identified by
// email, releasing its seats.  Cancellation closes CancellationWindow
// before the show starts.
func (s *CancellationService) CancelBooking(ctx context.Context, bookingID uint64, email string) (booking *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "service.cancellation.cancel_booking")
	span.SetAttributes(attribute.Int64("booking_id", int64(bookingID)))
	defer func() { endSpan(span, err) }()

	var user *model.User
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		user, err = loadUser(ctx, tx, email)
		if err != nil {
			return err
		}
		if b.UserID != user.ID {
			return fmt.Errorf("%w: booking belongs to another user", ErrForbidden)
		}
		if b.Status == model.BookingCancelled {
			return fmt.Errorf("%w: booking is already cancelled", ErrInvalidOperation)
		}
		show, err := tx.GetShow(ctx, b.ShowID)
		if err != nil {
			return err
		}
		if show.StartsAt.Sub(now) < CancellationWindow {
			return fmt.Errorf("%w: bookings cannot be cancelled less than %s before the show",
				ErrInvalidOperation, CancellationWindow)
		}

		seats, err := tx.ShowSeatsByIDs(ctx, b.ShowID, b.ShowSeatIDs())
		if err != nil {
			return err
		}
		for i := range seats {
			seats[i].Release()
			if err := tx.UpdateShowSeat(ctx, &seats[i]); err != nil {
				return err
			}
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, model.BookingConfirmed, model.BookingCancelled); err != nil {
			return err
		}
		b.Status = model.BookingCancelled
		booking = b
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.log.Info("booking cancelled", zap.Uint64("booking_id", booking.ID), zap.Uint64s("show_seat_ids", booking.ShowSeatIDs()))
	s.requestRefund(*booking, *user)
	s.notify(NotifyBookingCancelled, booking)
	return booking, nil
}

func (s *CancellationService) requestRefund(b model.Booking, user model.User) {
	if s.gateway == nil || b.TransactionID == nil || b.TotalAmountCents == 0 {
		return
	}
	txn := *b.TransactionID
	s.goAsync("refund", func(ctx context.Context) {
		res, err := s.gateway.ProcessRefund(ctx, txn, b.TotalAmountCents)
		if err != nil || !res.Success {
			s.log.Error("refund after cancellation failed",
				zap.Uint64("booking_id", b.ID),
				zap.String("transaction_id", txn),
				zap.Error(err))
			return
		}
		s.log.Info("refund issued", zap.Uint64("booking_id", b.ID), zap.String("refund_id", res.RefundID))
		s.notify(NotifyRefundIssued, RefundNotice{
			UserID:        user.ID,
			Email:         user.Email,
			BookingID:     b.ID,
			TransactionID: txn,
			AmountCents:   b.TotalAmountCents,
			Reason:        "booking cancelled",
		})
	})
}
