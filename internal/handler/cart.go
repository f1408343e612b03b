package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/service"
)

type CartHandler struct {
	Cart *service.Cart
}

// Get handles GET /v1/cart.
func (h *CartHandler) Get(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ids, err := h.Cart.Get(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"book_ids": ids})
}

// Update handles POST /v1/cart with {"book_id": "...", "action": "add"|"remove"}.
func (h *CartHandler) Update(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		BookID string `json:"book_id"`
		Action string `json:"action"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ids, err := h.Cart.Apply(c.Request().Context(), uid, body.BookID, body.Action)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"book_ids": ids})
}
