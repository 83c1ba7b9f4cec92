package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/service"
)

// statusFor maps a service error kind onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSeatHoldExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrBookingFailedAfterPayment):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}.  Unclassified errors are
// logged and hidden behind a generic message.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error()}
	var unavailable *service.SeatsUnavailableError
	if errors.As(err, &unavailable) {
		body["unavailable"] = unavailable.ShowSeatIDs
	}
	var declined *service.PaymentError
	if errors.As(err, &declined) {
		body["code"] = declined.Code
	}
	return c.JSON(status, body)
}
