package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-seat-inventory/internal/config"
	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/payment"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository/memstore"
	"github.com/iliyamo/cinema-seat-inventory/internal/service"
	"github.com/iliyamo/cinema-seat-inventory/internal/utils"
	"github.com/iliyamo/cinema-seat-inventory/internal/worker"
)

const password = "s3cret!"

type api struct {
	t     *testing.T
	e     *echo.Echo
	store *memstore.Store
	show  model.Show
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := memstore.New()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	store.AddUser(model.User{Email: "alice@example.com", PasswordHash: hash, Role: RoleCustomer, IsActive: true})
	store.AddUser(model.User{Email: "bob@example.com", PasswordHash: hash, Role: RoleCustomer, IsActive: true})
	store.AddUser(model.User{Email: "owner@example.com", PasswordHash: hash, Role: RoleOwner, IsActive: true})
	for i := 1; i <= 4; i++ {
		store.AddSeat(model.Seat{HallID: 1, RowLabel: "A", SeatNumber: uint32(i)})
	}
	now := time.Now().UTC()
	show := store.AddShow(model.Show{
		HallID:         1,
		Title:          "Stalker",
		StartsAt:       now.Add(48 * time.Hour),
		EndsAt:         now.Add(51 * time.Hour),
		BasePriceCents: 1200,
		Status:         "SCHEDULED",
	})

	opts := []service.Option{
		service.WithLogger(zap.NewNop()),
		service.WithAsync(func(fn func(ctx context.Context)) { fn(context.Background()) }),
	}
	gateway := payment.NewMockGateway()
	inv := service.NewInventoryService(store, opts...)
	cfg := config.Config{JWTSecret: "router-test", AccessTTLMin: 5}

	e := echo.New()
	Register(e, Handlers{
		Auth: handler.NewAuthHandler(cfg, store),
		Seats: handler.NewSeatHandler(
			service.NewReservationService(store, opts...),
			service.NewCheckoutService(store, gateway, opts...),
			service.NewCancellationService(store, gateway, opts...),
			inv,
			10*time.Minute,
		),
		Admin:     handler.NewAdminHandler(inv, worker.NewReclaimer(store, worker.DefaultReclaimerConfig())),
		JWTSecret: cfg.JWTSecret,
	})
	return &api{t: t, e: e, store: store, show: show}
}

func (a *api) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (a *api) login(email string) string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, code, body)
	return body["access"].(map[string]any)["token"].(string)
}

func (a *api) seatIDs() []uint64 {
	a.t.Helper()
	code, body := a.do(http.MethodGet, fmt.Sprintf("/v1/shows/%d/seats", a.show.ID), "", nil)
	require.Equal(a.t, http.StatusOK, code)
	var ids []uint64
	for _, s := range body["seats"].([]any) {
		ids = append(ids, uint64(s.(map[string]any)["show_seat_id"].(float64)))
	}
	return ids
}

func (a *api) provision(owner string) {
	a.t.Helper()
	code, body := a.do(http.MethodPost, fmt.Sprintf("/v1/admin/shows/%d/seats", a.show.ID), owner, nil)
	require.Equal(a.t, http.StatusCreated, code, body)
	assert.EqualValues(a.t, 4, body["created"])
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLogin(t *testing.T) {
	a := newAPI(t)
	code, _ := a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "nobody@example.com", "password": password})
	assert.Equal(t, http.StatusUnauthorized, code)

	token := a.login("  Alice@Example.com ")
	code, body := a.do(http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestAdminRoutesRequireOwner(t *testing.T) {
	a := newAPI(t)
	alice := a.login("alice@example.com")

	code, _ := a.do(http.MethodPost, fmt.Sprintf("/v1/admin/shows/%d/seats", a.show.ID), alice, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/admin/shows/%d/seats", a.show.ID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	owner := a.login("owner@example.com")
	a.provision(owner)
	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/admin/shows/%d/seats", a.show.ID), owner, nil)
	assert.Equal(t, http.StatusConflict, code, "provisioning twice")
}

func TestHoldConfirmCancelFlow(t *testing.T) {
	a := newAPI(t)
	a.provision(a.login("owner@example.com"))
	alice := a.login("alice@example.com")
	bob := a.login("bob@example.com")
	ids := a.seatIDs()
	require.Len(t, ids, 4)

	code, hold := a.do(http.MethodPost, fmt.Sprintf("/v1/shows/%d/hold", a.show.ID), alice,
		map[string]any{"seat_ids": ids[:2]})
	require.Equal(t, http.StatusCreated, code, hold)
	token := hold["hold_token"].(string)
	assert.Equal(t, model.HoldActive, hold["status"])

	code, body := a.do(http.MethodPost, fmt.Sprintf("/v1/shows/%d/book", a.show.ID), bob,
		map[string]any{"seat_ids": ids[1:3]})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, []any{float64(ids[1])}, body["unavailable"])

	code, _ = a.do(http.MethodPost, "/v1/holds/"+token+"/confirm", bob, map[string]string{"payment_method": "pm_card_visa"})
	assert.Equal(t, http.StatusGone, code, "another user's hold")

	code, body = a.do(http.MethodPost, "/v1/holds/"+token+"/confirm", alice, map[string]string{"payment_method": "tok_chargeDeclined"})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "card_declined", body["code"])

	code, booking := a.do(http.MethodPost, "/v1/holds/"+token+"/confirm", alice, map[string]string{"payment_method": "pm_card_visa"})
	require.Equal(t, http.StatusCreated, code, booking)
	assert.Equal(t, model.BookingConfirmed, booking["status"])
	assert.EqualValues(t, 2400, booking["total_amount_cents"])
	assert.NotEmpty(t, booking["transaction_id"])

	code, _ = a.do(http.MethodPost, "/v1/holds/"+token+"/confirm", alice, map[string]string{"payment_method": "pm_card_visa"})
	assert.Equal(t, http.StatusGone, code, "hold already confirmed")

	bookingID := uint64(booking["id"].(float64))
	code, _ = a.do(http.MethodDelete, fmt.Sprintf("/v1/bookings/%d", bookingID), bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, cancelled := a.do(http.MethodDelete, fmt.Sprintf("/v1/bookings/%d", bookingID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.BookingCancelled, cancelled["status"])

	code, _ = a.do(http.MethodDelete, fmt.Sprintf("/v1/bookings/%d", bookingID), alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/shows/%d/book", a.show.ID), bob,
		map[string]any{"seat_ids": ids[:2]})
	assert.Equal(t, http.StatusCreated, code, "cancelled seats are bookable again")
}

func TestReleaseHold(t *testing.T) {
	a := newAPI(t)
	a.provision(a.login("owner@example.com"))
	alice := a.login("alice@example.com")
	ids := a.seatIDs()

	code, hold := a.do(http.MethodPost, fmt.Sprintf("/v1/shows/%d/hold", a.show.ID), alice,
		map[string]any{"seat_ids": ids[:1], "ttl_seconds": 60})
	require.Equal(t, http.StatusCreated, code)

	code, released := a.do(http.MethodDelete, "/v1/holds/"+hold["hold_token"].(string), alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.HoldReleased, released["status"])

	code, _ = a.do(http.MethodDelete, "/v1/holds/"+hold["hold_token"].(string), alice, nil)
	assert.Equal(t, http.StatusGone, code)
}

func TestBookValidation(t *testing.T) {
	a := newAPI(t)
	a.provision(a.login("owner@example.com"))
	alice := a.login("alice@example.com")

	code, _ := a.do(http.MethodPost, "/v1/shows/abc/book", alice, map[string]any{"seat_ids": []uint64{1}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/shows/%d/book", a.show.ID), alice, map[string]any{"seat_ids": []uint64{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodPost, "/v1/shows/999/book", alice, map[string]any{"seat_ids": []uint64{1}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(http.MethodPost, fmt.Sprintf("/v1/shows/%d/hold", a.show.ID), alice,
		map[string]any{"seat_ids": []uint64{1}, "ttl_seconds": -5})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCleanup(t *testing.T) {
	a := newAPI(t)
	owner := a.login("owner@example.com")
	a.provision(owner)

	code, body := a.do(http.MethodPost, "/v1/admin/holds/cleanup", owner, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["result"].(map[string]any)["expired"])
}
