package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/service"
	"github.com/iliyamo/cinema-seat-inventory/internal/worker"
)

// AdminHandler serves the operator endpoints: show seat provisioning and
// manual hold cleanup.
type AdminHandler struct {
	Inventory *service.InventoryService
	Reclaimer *worker.Reclaimer
}

func NewAdminHandler(inv *service.InventoryService, r *worker.Reclaimer) *AdminHandler {
	return &AdminHandler{Inventory: inv, Reclaimer: r}
}

// Provision handles POST /v1/admin/shows/:id/seats.
func (h *AdminHandler) Provision(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	seats, err := h.Inventory.ProvisionShow(c.Request().Context(), showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"show_id": showID, "created": len(seats)})
}

// Deprovision handles DELETE /v1/admin/shows/:id/seats.
func (h *AdminHandler) Deprovision(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	removed, err := h.Inventory.DeprovisionShow(c.Request().Context(), showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "removed": removed})
}

// Cleanup handles POST /v1/admin/holds/cleanup: runs the bulk expiry
// path immediately and reports what it reclaimed.
func (h *AdminHandler) Cleanup(c echo.Context) error {
	res, err := h.Reclaimer.ForceCleanup(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": res, "stats": h.Reclaimer.Stats()})
}
