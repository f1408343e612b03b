// Package handler exposes the checkout, webhook and account endpoints over echo.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/middleware"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/repository"
	"github.com/papegu/senegal-livres/internal/service"
)

// currentUserID returns the authenticated user id, if any.
func currentUserID(c echo.Context) (uint64, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok || p.UserID == 0 {
		return 0, false
	}
	return p.UserID, true
}

// writeError maps service and provider errors to a status code and an
// {"error": ...} body.  Unknown errors are logged and reported as 500
// without detail.
func writeError(c echo.Context, err error) error {
	var rej *payment.RejectedError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, payment.ErrUnknownMethod):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment method"})
	case errors.Is(err, service.ErrUnknownBuyer):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	case errors.Is(err, service.ErrBuyerBlocked):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is blocked"})
	case errors.Is(err, service.ErrUnknownBook):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrAmountMismatch), errors.Is(err, service.ErrNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &rej):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  "payment request rejected by provider",
			"code":   rej.Code,
			"detail": rej.Detail,
		})
	case errors.Is(err, payment.ErrProviderUnreachable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unreachable, please retry"})
	case errors.Is(err, payment.ErrMethodUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment method unavailable"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
