package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
)

// cardSignatureTolerance bounds the age of a signed webhook.
const cardSignatureTolerance = 5 * time.Minute

var (
	cardPaid   = statusSet{"paid"}
	cardFailed = statusSet{"checkout.session.expired", "checkout.session.async_payment_failed"}
)

// Card talks to a Stripe-style hosted checkout.  Requests are form encoded
// and webhooks are signed over "t.body".
type Card struct {
	cfg     config.CardConfig
	money   Money
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewCard(cfg config.CardConfig, money Money, client *http.Client) (*Card, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("card: %w", ErrMissingCredentials)
	}
	return &Card{cfg: cfg, money: money, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client, now: time.Now}, nil
}

func (c *Card) Method() model.PaymentMethod { return model.MethodCard }

type cardSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type cardErrorResp struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Card) CreateInvoice(ctx context.Context, in InvoiceRequest) (Invoice, error) {
	desc := in.Description
	if desc == "" {
		desc = "Order " + in.OrderID
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.ReturnURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("client_reference_id", in.OrderID)
	if in.CustomerEmail != "" {
		form.Set("customer_email", in.CustomerEmail)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(c.money.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", desc)
	form.Set("metadata[order_id]", in.OrderID)
	form.Set("metadata[book_ids]", strings.Join(in.BookIDs, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return Invoice{}, err
	}
	req.SetBasicAuth(c.cfg.SecretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", in.OrderID)
	res, err := do(c.client, c.Method(), req)
	if err != nil {
		return Invoice{}, err
	}
	if res.Status >= 300 {
		var e cardErrorResp
		_ = json.Unmarshal(res.Body, &e)
		code := e.Error.Code
		if code == "" {
			code = e.Error.Type
		}
		detail := e.Error.Message
		if detail == "" {
			detail = snippet(res.Body)
		}
		return Invoice{}, &RejectedError{Method: c.Method(), Code: code, Detail: detail}
	}
	var s cardSession
	if err := json.Unmarshal(res.Body, &s); err != nil || s.URL == "" {
		return Invoice{}, &RejectedError{Method: c.Method(), Detail: "unexpected session response: " + snippet(res.Body)}
	}
	return Invoice{RedirectURL: s.URL, InvoiceToken: s.ID}, nil
}

type cardEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object cardSession `json:"object"`
	} `json:"data"`
}

func (c *Card) NormalizeCallback(_ context.Context, cb Callback) (CallbackEvent, error) {
	if !verifyTimestampedHMAC(cb.Header.Get("Stripe-Signature"), c.cfg.WebhookSecret, ".", cb.Body, cardSignatureTolerance, c.now()) {
		return CallbackEvent{}, fmt.Errorf("card: %w", ErrInvalidSignature)
	}
	var e cardEvent
	if err := json.Unmarshal(cb.Body, &e); err != nil {
		return CallbackEvent{}, fmt.Errorf("card: %w: %v", ErrMalformedCallback, err)
	}
	return sessionEvent(e.Type, e.Data.Object), nil
}

// sessionEvent classifies a checkout session; eventType is empty when the
// session was fetched directly.
func sessionEvent(eventType string, s cardSession) CallbackEvent {
	ev := CallbackEvent{
		OrderID:      s.ClientReferenceID,
		RawStatus:    s.PaymentStatus,
		RawCode:      eventType,
		InvoiceToken: s.ID,
	}
	if ev.OrderID == "" {
		ev.OrderID = s.Metadata["order_id"]
	}
	switch eventType {
	case "checkout.session.completed", "":
		ev.IsSuccess = cardPaid.has(s.PaymentStatus)
		ev.IsFailure = eventType == "" && s.Status == "expired"
	case "checkout.session.async_payment_succeeded":
		ev.IsSuccess = true
	default:
		ev.IsFailure = cardFailed.has(eventType)
	}
	return ev
}

// Confirm fetches the checkout session.
func (c *Card) Confirm(ctx context.Context, sessionID string) (CallbackEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return CallbackEvent{}, err
	}
	req.SetBasicAuth(c.cfg.SecretKey, "")
	res, err := do(c.client, c.Method(), req)
	if err != nil {
		return CallbackEvent{}, err
	}
	if res.Status >= 300 {
		return CallbackEvent{}, &RejectedError{Method: c.Method(), Code: fmt.Sprint(res.Status), Detail: snippet(res.Body)}
	}
	var s cardSession
	if err := json.Unmarshal(res.Body, &s); err != nil {
		return CallbackEvent{}, fmt.Errorf("card: confirm: %w: %v", ErrMalformedCallback, err)
	}
	return sessionEvent("", s), nil
}
