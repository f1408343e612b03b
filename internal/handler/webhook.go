package handler

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/service"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives provider callbacks.
type WebhookHandler struct {
	Reconciler *service.Reconciler
}

// Receive handles POST /v1/payments/webhooks/:provider.  The answer is
// always 200 "OK": a provider that sees anything else retries, and a
// retry storm only adds duplicates.  Problems are logged by reconciliation.
func (h *WebhookHandler) Receive(c echo.Context) (err error) {
	method := model.PaymentMethod(c.Param("provider"))
	defer func() {
		if r := recover(); r != nil {
			log.Printf("webhook: ALERT panic handling %s callback: %v", method, r)
			err = c.String(http.StatusOK, "OK")
		}
	}()

	body, readErr := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if readErr != nil {
		log.Printf("webhook: %s body read failed: %v", method, readErr)
		return c.String(http.StatusOK, "OK")
	}
	cb := payment.Callback{
		Header: c.Request().Header,
		Query:  c.QueryParams(),
		Body:   body,
	}
	// The provider hanging up must not abort a half-applied transition.
	ctx := context.WithoutCancel(c.Request().Context())
	h.Reconciler.HandleCallback(ctx, method, cb)
	return c.String(http.StatusOK, "OK")
}
