// Package payment isolates the provider-specific request and callback
// shapes from the rest of the system.  Each adapter turns an
// InvoiceRequest into the provider's invoice or checkout call and turns
// the provider's asynchronous notification into a CallbackEvent.
package payment

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/papegu/senegal-livres/internal/model"
)

// InvoiceRequest is the provider-neutral description of a payment intent.
// Amount is in the smallest currency unit; BookIDs travel as metadata so a
// callback can be tied back to the cart.
type InvoiceRequest struct {
	OrderID       string
	Amount        int64
	Description   string
	CustomerEmail string
	CustomerPhone string
	BookIDs       []string
	ReturnURL     string
	CancelURL     string
	CallbackURL   string
}

// Invoice is what a provider hands back when the intent is accepted.
// InvoiceToken is the value later callbacks echo back, when the provider
// has one.
type Invoice struct {
	RedirectURL  string
	InvoiceToken string
}

// Callback is the raw inbound notification as received over HTTP.
type Callback struct {
	Header http.Header
	Query  url.Values
	Body   []byte
}

// CallbackEvent is the canonical form of a provider notification.  At
// most one of IsSuccess and IsFailure is set; when neither is set the
// outcome is indeterminate and the transaction stays pending.
type CallbackEvent struct {
	OrderID      string
	RawStatus    string
	RawCode      string
	InvoiceToken string
	IsSuccess    bool
	IsFailure    bool
}

// Signal returns the raw fields stored on the transaction for audit.
func (e CallbackEvent) Signal() model.ProviderSignal {
	return model.ProviderSignal{Status: e.RawStatus, ResponseCode: e.RawCode, InvoiceToken: e.InvoiceToken}
}

// Provider is implemented by every payment adapter.
type Provider interface {
	Method() model.PaymentMethod
	CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error)
	NormalizeCallback(ctx context.Context, cb Callback) (CallbackEvent, error)
}

// Confirmer is implemented by adapters that can ask the provider for the
// current state of an invoice.  Reconciliation uses it as an advisory
// double check after a success callback.
type Confirmer interface {
	Confirm(ctx context.Context, invoiceToken string) (CallbackEvent, error)
}

// TokenAuthenticator is implemented by adapters whose callbacks carry no
// signature and are trusted only when their token equals the token stored
// at intent creation.
type TokenAuthenticator interface {
	AuthenticatesByToken() bool
}

// statusSet is a case-insensitive allow-list of provider status values.
type statusSet []string

func (s statusSet) has(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, x := range s {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}

// classify sets IsSuccess/IsFailure from explicit lists.  Anything not
// listed, including an empty status, stays indeterminate.
func classify(ev *CallbackEvent, status string, success, failure statusSet) {
	ev.IsSuccess = success.has(status)
	ev.IsFailure = !ev.IsSuccess && failure.has(status)
}
