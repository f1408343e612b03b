package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
)

const (
	payDunyaLiveURL = "https://app.paydunya.com/api/v1"
	payDunyaTestURL = "https://app.paydunya.com/sandbox-api/v1"
)

var (
	payDunyaSuccess = statusSet{"completed"}
	payDunyaFailure = statusSet{"cancelled", "failed", "expired"}
)

// PayDunya is the aggregator adapter.  Checkout goes through a hosted
// invoice page; the IPN is form encoded and carries a SHA-512 hash of the
// master key instead of an HMAC.
type PayDunya struct {
	cfg     config.PayDunyaConfig
	money   Money
	baseURL string
	client  *http.Client
}

func NewPayDunya(cfg config.PayDunyaConfig, money Money, client *http.Client) (*PayDunya, error) {
	if cfg.MasterKey == "" || cfg.PrivateKey == "" || cfg.Token == "" {
		return nil, fmt.Errorf("paydunya: %w", ErrMissingCredentials)
	}
	base := cfg.BaseURL
	if base == "" {
		base = payDunyaTestURL
		if strings.EqualFold(cfg.Mode, "live") {
			base = payDunyaLiveURL
		}
	}
	return &PayDunya{cfg: cfg, money: money, baseURL: strings.TrimRight(base, "/"), client: client}, nil
}

func (p *PayDunya) Method() model.PaymentMethod { return model.MethodPayDunya }

type payDunyaInvoiceBody struct {
	Invoice struct {
		TotalAmount json.Number `json:"total_amount"`
		Description string      `json:"description"`
	} `json:"invoice"`
	Store struct {
		Name string `json:"name"`
	} `json:"store"`
	CustomData map[string]string `json:"custom_data"`
	Actions    struct {
		CancelURL   string `json:"cancel_url"`
		ReturnURL   string `json:"return_url"`
		CallbackURL string `json:"callback_url"`
	} `json:"actions"`
}

type payDunyaCreateResp struct {
	ResponseCode string `json:"response_code"`
	ResponseText string `json:"response_text"`
	Description  string `json:"description"`
	Token        string `json:"token"`
}

func (p *PayDunya) sign(req *http.Request) {
	req.Header.Set("PAYDUNYA-MASTER-KEY", p.cfg.MasterKey)
	req.Header.Set("PAYDUNYA-PRIVATE-KEY", p.cfg.PrivateKey)
	req.Header.Set("PAYDUNYA-TOKEN", p.cfg.Token)
}

func (p *PayDunya) CreateInvoice(ctx context.Context, in InvoiceRequest) (Invoice, error) {
	var body payDunyaInvoiceBody
	body.Invoice.TotalAmount = json.Number(p.money.Major(in.Amount).String())
	body.Invoice.Description = in.Description
	body.Store.Name = p.cfg.StoreName
	body.CustomData = map[string]string{
		"order_id": in.OrderID,
		"book_ids": strings.Join(in.BookIDs, ","),
	}
	if in.CustomerEmail != "" {
		body.CustomData["customer_email"] = in.CustomerEmail
	}
	body.Actions.CancelURL = in.CancelURL
	body.Actions.ReturnURL = in.ReturnURL
	body.Actions.CallbackURL = in.CallbackURL

	req, err := newJSONRequest(ctx, http.MethodPost, p.baseURL+"/checkout-invoice/create", body)
	if err != nil {
		return Invoice{}, err
	}
	p.sign(req)
	res, err := do(p.client, p.Method(), req)
	if err != nil {
		return Invoice{}, err
	}
	var out payDunyaCreateResp
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return Invoice{}, &RejectedError{Method: p.Method(), Code: fmt.Sprint(res.Status), Detail: snippet(res.Body)}
	}
	// response_code "00" means the invoice exists; response_text is then
	// the hosted checkout URL.
	if out.ResponseCode != "00" || out.Token == "" {
		return Invoice{}, &RejectedError{Method: p.Method(), Code: out.ResponseCode, Detail: out.ResponseText}
	}
	return Invoice{RedirectURL: out.ResponseText, InvoiceToken: out.Token}, nil
}

// payDunyaIPN is the JSON variant of the IPN body.  The form variant uses
// bracketed keys such as data[status].
type payDunyaIPN struct {
	Data struct {
		ResponseCode string `json:"response_code"`
		Status       string `json:"status"`
		Hash         string `json:"hash"`
		Invoice      struct {
			Token string `json:"token"`
		} `json:"invoice"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"data"`
}

func (p *PayDunya) NormalizeCallback(_ context.Context, cb Callback) (CallbackEvent, error) {
	var (
		ev   CallbackEvent
		hash string
	)
	if strings.HasPrefix(cb.Header.Get("Content-Type"), "application/json") {
		var ipn payDunyaIPN
		if err := json.Unmarshal(cb.Body, &ipn); err != nil {
			return CallbackEvent{}, fmt.Errorf("paydunya: %w: %v", ErrMalformedCallback, err)
		}
		hash = ipn.Data.Hash
		ev.RawStatus = ipn.Data.Status
		ev.RawCode = ipn.Data.ResponseCode
		ev.InvoiceToken = ipn.Data.Invoice.Token
		if v, ok := ipn.Data.CustomData["order_id"].(string); ok {
			ev.OrderID = v
		}
	} else {
		form, err := url.ParseQuery(string(cb.Body))
		if err != nil {
			return CallbackEvent{}, fmt.Errorf("paydunya: %w: %v", ErrMalformedCallback, err)
		}
		hash = form.Get("data[hash]")
		ev.RawStatus = form.Get("data[status]")
		ev.RawCode = form.Get("data[response_code]")
		ev.InvoiceToken = form.Get("data[invoice][token]")
		ev.OrderID = form.Get("data[custom_data][order_id]")
	}
	if !p.validHash(hash) {
		return CallbackEvent{}, fmt.Errorf("paydunya: %w", ErrInvalidSignature)
	}
	if ev.OrderID == "" {
		ev.OrderID = cb.Query.Get("order_id")
	}
	classify(&ev, ev.RawStatus, payDunyaSuccess, payDunyaFailure)
	return ev, nil
}

func (p *PayDunya) validHash(got string) bool {
	sum := sha512.Sum512([]byte(p.cfg.MasterKey))
	want := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(got))) == 1
}

type payDunyaConfirmResp struct {
	ResponseCode string `json:"response_code"`
	ResponseText string `json:"response_text"`
	Status       string `json:"status"`
	Invoice      struct {
		Token string `json:"token"`
	} `json:"invoice"`
	CustomData map[string]any `json:"custom_data"`
}

// Confirm asks PayDunya for the invoice state.
func (p *PayDunya) Confirm(ctx context.Context, token string) (CallbackEvent, error) {
	req, err := newJSONRequest(ctx, http.MethodGet, p.baseURL+"/checkout-invoice/confirm/"+url.PathEscape(token), nil)
	if err != nil {
		return CallbackEvent{}, err
	}
	p.sign(req)
	res, err := do(p.client, p.Method(), req)
	if err != nil {
		return CallbackEvent{}, err
	}
	var out payDunyaConfirmResp
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return CallbackEvent{}, fmt.Errorf("paydunya: confirm: %w: %v", ErrMalformedCallback, err)
	}
	if out.ResponseCode != "00" {
		return CallbackEvent{}, &RejectedError{Method: p.Method(), Code: out.ResponseCode, Detail: out.ResponseText}
	}
	ev := CallbackEvent{RawStatus: out.Status, RawCode: out.ResponseCode, InvoiceToken: token}
	if out.Invoice.Token != "" {
		ev.InvoiceToken = out.Invoice.Token
	}
	if v, ok := out.CustomData["order_id"].(string); ok {
		ev.OrderID = v
	}
	classify(&ev, ev.RawStatus, payDunyaSuccess, payDunyaFailure)
	return ev, nil
}
