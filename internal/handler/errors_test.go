package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-seat-inventory/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: show 9", service.ErrNotFound), http.StatusNotFound},
		{service.ErrInvalidRequest, http.StatusBadRequest},
		{&service.SeatsUnavailableError{ShowSeatIDs: []uint64{1}}, http.StatusConflict},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrInvalidOperation, http.StatusUnprocessableEntity},
		{service.ErrSeatHoldExpired, http.StatusGone},
		{&service.PaymentError{Code: "card_declined"}, http.StatusPaymentRequired},
		{fmt.Errorf("%w (transaction t1): boom", service.ErrBookingFailedAfterPayment), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRespondErrorDetails(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	_ = respondError(c, &service.SeatsUnavailableError{ShowSeatIDs: []uint64{3, 4}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"seats no longer available: [3 4]","unavailable":[3,4]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	_ = respondError(c, errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
