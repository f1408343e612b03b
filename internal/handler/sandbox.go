package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/repository"
	"github.com/papegu/senegal-livres/internal/service"
)

// SandboxHandler serves the confirmation page of the sandbox provider.
// Confirming or declining feeds a canonical callback through the same
// reconciliation path as real providers.
type SandboxHandler struct {
	Transactions  TransactionReader
	Sandbox       *payment.Sandbox
	Reconciler    *service.Reconciler
	Money         payment.Money
	PublicBaseURL string // buyer return pages; empty answers with JSON
}

var sandboxPage = template.Must(template.New("sandbox").Parse(`<!doctype html>
<html lang="fr"><head><meta charset="utf-8"><title>Paiement test {{.OrderID}}</title></head>
<body>
<h1>Paiement de test</h1>
<p>Commande <strong>{{.OrderID}}</strong> : {{.Amount}}</p>
{{if .Pending}}
<form method="post" action="{{.Base}}/confirm"><button type="submit">Payer</button></form>
<form method="post" action="{{.Base}}/decline"><button type="submit">Refuser</button></form>
{{else}}
<p>Cette commande est deja {{.Status}}.</p>
{{end}}
</body></html>`))

// Page handles GET /v1/payments/sandbox/:orderId.
func (h *SandboxHandler) Page(c echo.Context) error {
	tx, ok, err := h.load(c)
	if !ok {
		return err
	}
	var buf bytes.Buffer
	if err := sandboxPage.Execute(&buf, map[string]any{
		"OrderID": tx.OrderID,
		"Amount":  h.Money.Format(tx.Amount),
		"Pending": tx.Status == model.StatusPending,
		"Status":  string(tx.Status),
		"Base":    "/v1/payments/sandbox/" + url.PathEscape(tx.OrderID),
	}); err != nil {
		return writeError(c, err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Confirm handles POST /v1/payments/sandbox/:orderId/confirm.
func (h *SandboxHandler) Confirm(c echo.Context) error { return h.decide(c, true) }

// Decline handles POST /v1/payments/sandbox/:orderId/decline.
func (h *SandboxHandler) Decline(c echo.Context) error { return h.decide(c, false) }

func (h *SandboxHandler) decide(c echo.Context, approved bool) error {
	tx, ok, err := h.load(c)
	if !ok {
		return err
	}
	if tx.PaymentMethod != model.MethodSandbox {
		return c.JSON(http.StatusConflict, echo.Map{"error": "not a sandbox transaction"})
	}
	ctx := context.WithoutCancel(c.Request().Context())
	outcome := h.Reconciler.HandleCallback(ctx, model.MethodSandbox, h.Sandbox.Callback(tx.OrderID, approved))
	log.Printf("sandbox: order_id=%s approved=%t outcome=%s", tx.OrderID, approved, outcome)

	if h.PublicBaseURL != "" {
		page := "/payment/cancel"
		if approved {
			page = "/payment/success"
		}
		return c.Redirect(http.StatusSeeOther, h.PublicBaseURL+page+"?order_id="+url.QueryEscape(tx.OrderID))
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": tx.OrderID, "outcome": outcome})
}

// load fetches the transaction named in the path.  When ok is false the
// response has already been written and err is its result.
func (h *SandboxHandler) load(c echo.Context) (*model.Transaction, bool, error) {
	tx, err := h.Transactions.GetByOrderID(c.Request().Context(), c.Param("orderId"))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
	}
	if err != nil {
		return nil, false, writeError(c, err)
	}
	return tx, true, nil
}
