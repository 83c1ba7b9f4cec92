package service

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/payment"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// CheckoutService turns a live hold into a paid booking.
//
// The charge happens between two transactions.  The first moves the
// hold to PAYMENT_PENDING so it cannot be confirmed twice; the second
// books the seats.  If the charge fails the hold goes back to ACTIVE.
// If the charge succeeds but the booking cannot be committed the
// payment is refunded before ErrBookingFailedAfterPayment is returned.
type CheckoutService struct {
	store   repository.Store
	gateway payment.Gateway
	deps
}

// NewCheckoutService builds a CheckoutService.
func NewCheckoutService(store repository.Store, gateway payment.Gateway, opts ...Option) *CheckoutService {
	return &CheckoutService{store: store, gateway: gateway, deps: newDeps(opts)}
}

// pendingCheckout is what the first transaction hands to the payment
// step.
type pendingCheckout struct {
	hold   model.SeatHold
	user   model.User
	amount uint32
}

// ConfirmHoldWithPayment charges method for the hold identified by
// token and books its seats.
func (s *CheckoutService) ConfirmHoldWithPayment(ctx context.Context, token, method, email string) (booking *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "service.checkout.confirm_hold")
	defer func() {
		attrs := metric.WithAttributes(attribute.String("flow", "checkout"))
		if err != nil {
			s.failure.Add(ctx, 1, attrs)
		} else {
			s.success.Add(ctx, 1, attrs)
		}
		endSpan(span, err)
	}()

	pending, err := s.beginPayment(ctx, token, email)
	if err != nil {
		return nil, translate(err)
	}
	span.SetAttributes(attribute.Int64("hold_id", int64(pending.hold.ID)), attribute.Int64("amount_cents", int64(pending.amount)))

	charge, err := s.gateway.ProcessPayment(ctx, payment.ChargeRequest{
		AmountCents:   pending.amount,
		Currency:      s.currency,
		CustomerEmail: pending.user.Email,
		Method:        method,
		Metadata: map[string]string{
			"hold_token": pending.hold.HoldToken,
			"hold_id":    strconv.FormatUint(pending.hold.ID, 10),
			"show_id":    strconv.FormatUint(pending.hold.ShowID, 10),
		},
	})
	if err != nil || !charge.Success {
		perr := &PaymentError{Code: "gateway_error"}
		if err != nil {
			perr.Message = err.Error()
		} else {
			perr.Code, perr.Message = charge.ErrorCode, charge.ErrorMessage
		}
		s.reactivate(ctx, pending.hold)
		s.log.Warn("payment failed",
			zap.Uint64("hold_id", pending.hold.ID),
			zap.String("code", perr.Code),
			zap.String("message", perr.Message))
		return nil, perr
	}

	booking, err = s.completeBooking(ctx, pending, charge.TransactionID)
	if err != nil {
		return nil, s.compensate(ctx, pending, charge.TransactionID, err)
	}
	s.log.Info("hold confirmed",
		zap.Uint64("hold_id", pending.hold.ID),
		zap.Uint64("booking_id", booking.ID),
		zap.String("transaction_id", charge.TransactionID),
		zap.Uint32("total_amount_cents", booking.TotalAmountCents))
	s.notify(NotifyBookingConfirmed, booking)
	return booking, nil
}

// beginPayment validates the hold and moves it to PAYMENT_PENDING.
func (s *CheckoutService) beginPayment(ctx context.Context, token, email string) (*pendingCheckout, error) {
	var p pendingCheckout
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		hold, err := tx.HoldByToken(ctx, token)
		if err != nil {
			return err
		}
		user, err := loadUser(ctx, tx, email)
		if err != nil {
			return err
		}
		if hold.UserID != user.ID || !hold.IsActive(now) {
			return fmt.Errorf("%w: hold is not active for this user", ErrSeatHoldExpired)
		}
		show, err := tx.GetShow(ctx, hold.ShowID)
		if err != nil {
			return err
		}
		if show.HasStarted(now) {
			return fmt.Errorf("%w: show %d has already started", ErrInvalidOperation, show.ID)
		}
		seats, err := tx.ShowSeatsByIDs(ctx, hold.ShowID, hold.SeatIDs)
		if err != nil {
			return err
		}
		if len(seats) != len(hold.SeatIDs) {
			return fmt.Errorf("%w: held seats were removed from show %d", ErrConflict, hold.ShowID)
		}
		if err := requireSeats(seats, func(ss model.ShowSeat) bool {
			return hold.Owns(ss) || ss.IsAvailable(now)
		}); err != nil {
			return err
		}
		var amount uint32
		for _, ss := range seats {
			amount += ss.PriceCents
		}
		if err := tx.UpdateHoldStatus(ctx, hold, model.HoldPaymentPending); err != nil {
			return err
		}
		p = pendingCheckout{hold: *hold, user: *user, amount: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// reactivate returns a PAYMENT_PENDING hold to ACTIVE after a failed
// charge so the user can retry while the hold lasts.  It gives up if
// anything else touched the hold meanwhile.
func (s *CheckoutService) reactivate(ctx context.Context, hold model.SeatHold) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.UpdateHoldStatus(ctx, &hold, model.HoldActive)
	})
	if err != nil {
		s.log.Warn("could not reactivate hold after failed payment", zap.Uint64("hold_id", hold.ID), zap.Error(err))
	}
}

// completeBooking books the held seats.  The hold must be unchanged
// since beginPayment; each seat must still be owned by this hold or be
// free.  A seat the same user re-held under a newer hold is not owned.
func (s *CheckoutService) completeBooking(ctx context.Context, p *pendingCheckout, transactionID string) (*model.Booking, error) {
	var booking *model.Booking
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()
		hold, err := tx.HoldByID(ctx, p.hold.ID)
		if err != nil {
			return err
		}
		if hold.Status != model.HoldPaymentPending || hold.Version != p.hold.Version {
			return fmt.Errorf("%w: hold %d changed during payment", ErrConflict, hold.ID)
		}
		show, err := tx.GetShow(ctx, hold.ShowID)
		if err != nil {
			return err
		}
		seats, err := tx.ShowSeatsByIDs(ctx, hold.ShowID, hold.SeatIDs)
		if err != nil {
			return err
		}
		if len(seats) != len(hold.SeatIDs) {
			return fmt.Errorf("%w: held seats were removed from show %d", ErrConflict, hold.ShowID)
		}
		if err := requireSeats(seats, func(ss model.ShowSeat) bool {
			return hold.Owns(ss) || ss.IsAvailable(now)
		}); err != nil {
			return err
		}
		txn := transactionID
		booking, err = materializeBooking(ctx, tx, &p.user, show, seats, &txn, now)
		if err != nil {
			return err
		}
		return tx.UpdateHoldStatus(ctx, hold, model.HoldConfirmed)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// compensate refunds the captured charge, then expires the hold and
// frees its seats.  The refund is attempted even when ctx is done.
func (s *CheckoutService) compensate(ctx context.Context, p *pendingCheckout, transactionID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	refundStatus := "failed"
	res, rerr := s.gateway.ProcessRefund(ctx, transactionID, p.amount)
	switch {
	case rerr != nil:
		refundStatus = rerr.Error()
	case res.Success:
		refundStatus = res.Status
	}
	s.log.Error("booking failed after payment, refund initiated",
		zap.Uint64("hold_id", p.hold.ID),
		zap.Uint64("user_id", p.user.ID),
		zap.String("transaction_id", transactionID),
		zap.Uint32("amount_cents", p.amount),
		zap.String("refund_status", refundStatus),
		zap.NamedError("cause", cause))
	if rerr == nil && res.Success {
		s.notify(NotifyRefundIssued, RefundNotice{
			UserID:        p.user.ID,
			Email:         p.user.Email,
			TransactionID: transactionID,
			AmountCents:   p.amount,
			Reason:        "booking could not be completed",
		})
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		hold, err := tx.HoldByID(ctx, p.hold.ID)
		if err != nil {
			return err
		}
		if hold.IsTerminal() {
			return nil
		}
		if _, err := ReleaseHoldSeats(ctx, tx, *hold); err != nil {
			return err
		}
		return tx.UpdateHoldStatus(ctx, hold, model.HoldExpired)
	})
	if err != nil {
		s.log.Warn("could not expire hold after failed booking", zap.Uint64("hold_id", p.hold.ID), zap.Error(err))
	}
	return fmt.Errorf("%w (transaction %s): %v", ErrBookingFailedAfterPayment, transactionID, cause)
}

// RefundNotice is the payload of a refund notification.
type RefundNotice struct {
	UserID        uint64 `json:"user_id"`
	Email         string `json:"email"`
	BookingID     uint64 `json:"booking_id,omitempty"`
	TransactionID string `json:"transaction_id"`
	AmountCents   uint32 `json:"amount_cents"`
	Reason        string `json:"reason"`
}
