package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/handler"
	"github.com/iliyamo/cinema-seat-inventory/internal/middleware"
)

// Roles accepted on protected routes.
const (
	RoleCustomer = "CUSTOMER"
	RoleOwner    = "OWNER"
)

// Handlers groups everything the router wires.  Limit guards the
// seat-claiming routes and may be nil.
type Handlers struct {
	Auth      *handler.AuthHandler
	Seats     *handler.SeatHandler
	Admin     *handler.AdminHandler
	JWTSecret string
	Limit     echo.MiddlewareFunc
}

// RegisterRoutes registers non-authenticated routes on the provided Echo
// instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the login route and the token introspection
// endpoint.
func RegisterAuth(e *echo.Echo, h Handlers) {
	e.POST("/v1/auth/login", h.Auth.Login)

	auth := e.Group("/v1", middleware.JWTAuth(h.JWTSecret), middleware.RequireRole(RoleOwner, RoleCustomer))
	auth.GET("/me", h.Auth.Me)
}

// RegisterBooking registers the customer seat endpoints.  The seat map is
// public; every write requires a valid access token and is rate limited.
func RegisterBooking(e *echo.Echo, h Handlers) {
	e.GET("/v1/shows/:id/seats", h.Seats.SeatMap)

	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(h.JWTSecret),
		middleware.RequireRole(RoleOwner, RoleCustomer),
	}
	if h.Limit != nil {
		mw = append(mw, h.Limit)
	}
	g := e.Group("/v1", mw...)
	g.POST("/shows/:id/book", h.Seats.Book)
	g.POST("/shows/:id/hold", h.Seats.Hold)
	g.POST("/holds/:token/confirm", h.Seats.Confirm)
	g.DELETE("/holds/:token", h.Seats.ReleaseHold)
	g.DELETE("/bookings/:id", h.Seats.CancelBooking)
}

// RegisterAdmin registers the operator endpoints.  Only OWNER tokens are
// accepted.
func RegisterAdmin(e *echo.Echo, h Handlers) {
	g := e.Group("/v1/admin", middleware.JWTAuth(h.JWTSecret), middleware.RequireRole(RoleOwner))
	g.POST("/shows/:id/seats", h.Admin.Provision)
	g.DELETE("/shows/:id/seats", h.Admin.Deprovision)
	g.POST("/holds/cleanup", h.Admin.Cleanup)
}

// Register wires every route group.
func Register(e *echo.Echo, h Handlers) {
	RegisterRoutes(e)
	RegisterAuth(e, h)
	RegisterBooking(e, h)
	RegisterAdmin(e, h)
}
