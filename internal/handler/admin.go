package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/service"
)

// AdminHandler holds operator escape hatches.  Routes run behind
// JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	Reconciler *service.Reconciler
}

// CancelTransaction handles POST /v1/admin/transactions/:orderId/cancel.
// Only pending transactions can be cancelled; anything else is 409.
func (h *AdminHandler) CancelTransaction(c echo.Context) error {
	orderID := c.Param("orderId")
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	reason := "cancelled_by_admin"
	if body.Reason != "" {
		reason = body.Reason
	}
	if err := h.Reconciler.CancelPending(c.Request().Context(), orderID, reason); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": orderID, "status": "cancelled"})
}
