package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/repository"
)

type PurchaseLister interface {
	ListByUser(ctx context.Context, userID uint64) ([]repository.PurchaseDetail, error)
}

type PurchaseHandler struct {
	Purchases PurchaseLister
}

// List handles GET /v1/me/purchases.
func (h *PurchaseHandler) List(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Purchases.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
