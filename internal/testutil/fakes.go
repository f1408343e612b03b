package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/queue"
)

// Mail is one message captured by RecordingMailer.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// RecordingMailer records every send.  When Err is set the attempt is
// still recorded and Err is returned.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []Mail
	Err  error
}

func (m *RecordingMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Mail{To: to, Subject: subject, HTML: html})
	return m.Err
}

func (m *RecordingMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail{}, m.sent...)
}

// CallbackBody is the payload ScriptedProvider understands.
type CallbackBody struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
}

// Callback encodes a ScriptedProvider callback.
func Callback(orderID, status, token string) payment.Callback {
	b, _ := json.Marshal(CallbackBody{OrderID: orderID, Status: status, Token: token})
	return payment.Callback{Body: b}
}

// ScriptedProvider returns a fixed invoice and classifies callbacks with
// "completed" as success and "failed"/"cancelled" as failure.
type ScriptedProvider struct {
	Tag        model.PaymentMethod
	Invoice    payment.Invoice
	InvoiceErr error

	mu       sync.Mutex
	requests []payment.InvoiceRequest
}

func NewScriptedProvider(tag model.PaymentMethod) *ScriptedProvider {
	return &ScriptedProvider{
		Tag:     tag,
		Invoice: payment.Invoice{RedirectURL: "https://pay.example/" + string(tag), InvoiceToken: "tok_" + string(tag)},
	}
}

func (p *ScriptedProvider) Method() model.PaymentMethod { return p.Tag }

func (p *ScriptedProvider) CreateInvoice(_ context.Context, req payment.InvoiceRequest) (payment.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.InvoiceErr != nil {
		return payment.Invoice{}, p.InvoiceErr
	}
	return p.Invoice, nil
}

func (p *ScriptedProvider) Requests() []payment.InvoiceRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment.InvoiceRequest{}, p.requests...)
}

func (p *ScriptedProvider) NormalizeCallback(_ context.Context, cb payment.Callback) (payment.CallbackEvent, error) {
	var b CallbackBody
	if err := json.Unmarshal(cb.Body, &b); err != nil {
		return payment.CallbackEvent{}, payment.ErrMalformedCallback
	}
	if b.Status == "forged" {
		return payment.CallbackEvent{}, payment.ErrInvalidSignature
	}
	ev := payment.CallbackEvent{OrderID: b.OrderID, RawStatus: b.Status, InvoiceToken: b.Token}
	switch b.Status {
	case "completed":
		ev.IsSuccess = true
	case "failed", "cancelled":
		ev.IsFailure = true
	}
	return ev, nil
}

// TokenProvider is a ScriptedProvider whose callbacks are trusted only on
// an exact token match.
type TokenProvider struct{ *ScriptedProvider }

func (TokenProvider) AuthenticatesByToken() bool { return true }

// ConfirmingProvider adds an advisory confirmation step.
type ConfirmingProvider struct {
	*ScriptedProvider
	ConfirmFn func(token string) (payment.CallbackEvent, error)

	mu    sync.Mutex
	calls []string
}

func (p *ConfirmingProvider) Confirm(_ context.Context, token string) (payment.CallbackEvent, error) {
	p.mu.Lock()
	p.calls = append(p.calls, token)
	p.mu.Unlock()
	return p.ConfirmFn(token)
}

func (p *ConfirmingProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.calls...)
}

// RecordingDispatcher captures events and, when Forward is set, runs it
// synchronously so tests see fulfillment finish before they assert.
type RecordingDispatcher struct {
	mu      sync.Mutex
	events  []queue.PaymentValidatedEvent
	Err     error
	Forward queue.HandlerFunc
}

func (d *RecordingDispatcher) Dispatch(ctx context.Context, ev queue.PaymentValidatedEvent) error {
	d.mu.Lock()
	d.events = append(d.events, ev)
	fwd, err := d.Forward, d.Err
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if fwd != nil {
		return fwd(ctx, ev)
	}
	return nil
}

func (d *RecordingDispatcher) Events() []queue.PaymentValidatedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]queue.PaymentValidatedEvent{}, d.events...)
}
