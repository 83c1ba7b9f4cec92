package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
	"github.com/iliyamo/cinema-seat-inventory/internal/service"
)

// SeatHandler serves the customer booking endpoints.  The caller is
// identified by the email claim of the access token.
type SeatHandler struct {
	Reservations  *service.ReservationService
	Checkout      *service.CheckoutService
	Cancellations *service.CancellationService
	Inventory     *service.InventoryService
	HoldTTL       time.Duration
}

func NewSeatHandler(r *service.ReservationService, co *service.CheckoutService, ca *service.CancellationService, inv *service.InventoryService, holdTTL time.Duration) *SeatHandler {
	return &SeatHandler{Reservations: r, Checkout: co, Cancellations: ca, Inventory: inv, HoldTTL: holdTTL}
}

// Book handles POST /v1/shows/:id/book: books the seats immediately
// without payment.
func (h *SeatHandler) Book(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req seatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	b, err := h.Reservations.BookSeats(c.Request().Context(), showID, req.SeatIDs, middleware.CallerEmail(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(b))
}

// Hold handles POST /v1/shows/:id/hold.  ttl_seconds overrides the
// configured hold lifetime.
func (h *SeatHandler) Hold(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req seatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.TTLSeconds < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ttl_seconds must be positive"})
	}
	ttl := h.HoldTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	hold, err := h.Reservations.HoldSeats(c.Request().Context(), showID, req.SeatIDs, middleware.CallerEmail(c), ttl)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toHoldResp(hold))
}

// Confirm handles POST /v1/holds/:token/confirm: charges the caller and
// turns the hold into a booking.
func (h *SeatHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PaymentMethod == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_method is required"})
	}
	b, err := h.Checkout.ConfirmHoldWithPayment(c.Request().Context(), c.Param("token"), req.PaymentMethod, middleware.CallerEmail(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(b))
}

// ReleaseHold handles DELETE /v1/holds/:token.
func (h *SeatHandler) ReleaseHold(c echo.Context) error {
	hold, err := h.Reservations.ReleaseHold(c.Request().Context(), c.Param("token"), middleware.CallerEmail(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toHoldResp(hold))
}

// CancelBooking handles DELETE /v1/bookings/:id.
func (h *SeatHandler) CancelBooking(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Cancellations.CancelBooking(c.Request().Context(), id, middleware.CallerEmail(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}

// SeatMap handles GET /v1/shows/:id/seats.  It needs no authentication.
func (h *SeatHandler) SeatMap(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	seats, err := h.Inventory.SeatMap(c.Request().Context(), showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "seats": seats})
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
