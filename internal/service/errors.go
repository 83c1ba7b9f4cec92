package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// Error kinds returned by the seat inventory services.  Every error a
// service returns wraps exactly one of these; match with errors.Is.
var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrConflict                  = errors.New("seats no longer available")
	ErrForbidden                 = errors.New("forbidden")
	ErrInvalidOperation          = errors.New("invalid operation")
	ErrSeatHoldExpired           = errors.New("seat hold expired or not found")
	ErrPaymentFailed             = errors.New("payment failed")
	ErrBookingFailedAfterPayment = errors.New("booking failed after payment, refund initiated")
)

// PaymentError reports a declined or failed charge with the gateway's
// error code.
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("payment failed: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("payment failed: %s", e.Code)
}

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }

// SeatsUnavailableError lists the show seats that blocked a claim.
type SeatsUnavailableError struct {
	ShowSeatIDs []uint64
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats no longer available: %v", e.ShowSeatIDs)
}

func (e *SeatsUnavailableError) Unwrap() error { return ErrConflict }

// translate maps repository sentinels onto the service taxonomy.
// Errors that already carry a service kind pass through unchanged.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case isServiceError(err):
		return err
	case errors.Is(err, repository.ErrStaleWrite), errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrForbidden):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case errors.Is(err, repository.ErrShowNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrHoldNotFound):
		return fmt.Errorf("%w: %v", ErrSeatHoldExpired, err)
	}
	return err
}

func isServiceError(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrInvalidRequest, ErrConflict, ErrForbidden,
		ErrInvalidOperation, ErrSeatHoldExpired, ErrPaymentFailed,
		ErrBookingFailedAfterPayment,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
