package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
)

var (
	waveSuccess = statusSet{"succeeded"}
	waveFailure = statusSet{"cancelled", "failed"}
)

// Wave creates checkout sessions and authenticates webhooks with a
// timestamped HMAC in the Wave-Signature header.
type Wave struct {
	cfg     config.WaveConfig
	money   Money
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewWave(cfg config.WaveConfig, money Money, client *http.Client) (*Wave, error) {
	if cfg.APIKey == "" || cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("wave: %w", ErrMissingCredentials)
	}
	return &Wave{cfg: cfg, money: money, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client, now: time.Now}, nil
}

func (w *Wave) Method() model.PaymentMethod { return model.MethodWave }

type waveSession struct {
	ID              string `json:"id"`
	LaunchURL       string `json:"wave_launch_url"`
	CheckoutStatus  string `json:"checkout_status"`
	PaymentStatus   string `json:"payment_status"`
	ClientReference string `json:"client_reference"`
}

type waveError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w *Wave) CreateInvoice(ctx context.Context, in InvoiceRequest) (Invoice, error) {
	payload := map[string]string{
		"amount":           w.money.Major(in.Amount).String(),
		"currency":         w.money.Currency,
		"success_url":      in.ReturnURL,
		"error_url":        in.CancelURL,
		"client_reference": in.OrderID,
	}
	req, err := newJSONRequest(ctx, http.MethodPost, w.baseURL+"/v1/checkout/sessions", payload)
	if err != nil {
		return Invoice{}, err
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	// Wave deduplicates session creation on this key.
	req.Header.Set("Idempotency-Key", in.OrderID)
	res, err := do(w.client, w.Method(), req)
	if err != nil {
		return Invoice{}, err
	}
	if res.Status >= 300 {
		var we waveError
		_ = json.Unmarshal(res.Body, &we)
		if we.Message == "" {
			we.Message = snippet(res.Body)
		}
		return Invoice{}, &RejectedError{Method: w.Method(), Code: we.Code, Detail: we.Message}
	}
	var s waveSession
	if err := json.Unmarshal(res.Body, &s); err != nil || s.LaunchURL == "" {
		return Invoice{}, &RejectedError{Method: w.Method(), Detail: "unexpected session response: " + snippet(res.Body)}
	}
	return Invoice{RedirectURL: s.LaunchURL, InvoiceToken: s.ID}, nil
}

type waveEvent struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data waveSession `json:"data"`
}

func (w *Wave) NormalizeCallback(_ context.Context, cb Callback) (CallbackEvent, error) {
	if !verifyTimestampedHMAC(cb.Header.Get("Wave-Signature"), w.cfg.WebhookSecret, "", cb.Body, 0, w.now()) {
		return CallbackEvent{}, fmt.Errorf("wave: %w", ErrInvalidSignature)
	}
	var e waveEvent
	if err := json.Unmarshal(cb.Body, &e); err != nil {
		return CallbackEvent{}, fmt.Errorf("wave: %w: %v", ErrMalformedCallback, err)
	}
	ev := CallbackEvent{
		OrderID:      e.Data.ClientReference,
		RawStatus:    e.Data.PaymentStatus,
		RawCode:      e.Type,
		InvoiceToken: e.Data.ID,
	}
	switch e.Type {
	case "checkout.session.completed":
		classify(&ev, ev.RawStatus, waveSuccess, waveFailure)
	case "checkout.session.payment_failed":
		ev.IsFailure = true
	default:
		// Other event types never validate, but an explicit failed or
		// cancelled payment status still cancels.
		ev.IsFailure = waveFailure.has(ev.RawStatus)
	}
	return ev, nil
}
