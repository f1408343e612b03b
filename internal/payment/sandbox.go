package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papegu/senegal-livres/internal/model"
)

var (
	sandboxSuccess = statusSet{"completed"}
	sandboxFailure = statusSet{"failed", "cancelled"}
)

// Sandbox is a provider with no remote side.  Its redirect points at a
// local confirmation page which answers by building a callback with
// Callback and feeding it through the normal reconciliation path.
type Sandbox struct {
	apiBaseURL string
}

func NewSandbox(apiBaseURL string) *Sandbox {
	return &Sandbox{apiBaseURL: strings.TrimRight(apiBaseURL, "/")}
}

func (s *Sandbox) Method() model.PaymentMethod { return model.MethodSandbox }

func (s *Sandbox) CreateInvoice(_ context.Context, in InvoiceRequest) (Invoice, error) {
	return Invoice{
		RedirectURL:  s.apiBaseURL + "/v1/payments/sandbox/" + in.OrderID,
		InvoiceToken: "sandbox_" + in.OrderID,
	}, nil
}

type sandboxPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Token   string `json:"token"`
}

// Callback builds the payload the confirmation page submits.
func (s *Sandbox) Callback(orderID string, approved bool) Callback {
	status := "failed"
	if approved {
		status = "completed"
	}
	b, _ := json.Marshal(sandboxPayload{OrderID: orderID, Status: status, Token: "sandbox_" + orderID})
	return Callback{Body: b}
}

func (s *Sandbox) NormalizeCallback(_ context.Context, cb Callback) (CallbackEvent, error) {
	var p sandboxPayload
	if err := json.Unmarshal(cb.Body, &p); err != nil {
		return CallbackEvent{}, fmt.Errorf("sandbox: %w: %v", ErrMalformedCallback, err)
	}
	ev := CallbackEvent{OrderID: p.OrderID, RawStatus: p.Status, InvoiceToken: p.Token}
	classify(&ev, ev.RawStatus, sandboxSuccess, sandboxFailure)
	return ev, nil
}
