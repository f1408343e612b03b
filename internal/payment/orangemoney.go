package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
)

var (
	orangeSuccess = statusSet{"SUCCESS"}
	orangeFailure = statusSet{"FAILED", "CANCELLED", "EXPIRED"}
)

// OrangeMoney drives the web-payment API.  Notifications are unsigned; the
// notif_token returned at creation is the only proof of origin, so it is
// stored as the invoice token and must be echoed back.
type OrangeMoney struct {
	cfg     config.OrangeMoneyConfig
	money   Money
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewOrangeMoney(cfg config.OrangeMoneyConfig, money Money, client *http.Client) (*OrangeMoney, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.MerchantKey == "" {
		return nil, fmt.Errorf("orange_money: %w", ErrMissingCredentials)
	}
	if cfg.Country == "" {
		cfg.Country = "dev"
	}
	return &OrangeMoney{cfg: cfg, money: money, baseURL: strings.TrimRight(cfg.BaseURL, "/"), client: client}, nil
}

func (o *OrangeMoney) Method() model.PaymentMethod { return model.MethodOrangeMoney }

// AuthenticatesByToken marks notifications as trusted only on token match.
func (o *OrangeMoney) AuthenticatesByToken() bool { return true }

type orangeTokenResp struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached OAuth access token, refreshing it a minute before
// expiry.
func (o *OrangeMoney) token(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.accessToken != "" && time.Now().Before(o.expiresAt) {
		return o.accessToken, nil
	}
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/oauth/v3/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(o.cfg.ClientID, o.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	res, err := do(o.client, o.Method(), req)
	if err != nil {
		return "", err
	}
	var tr orangeTokenResp
	if res.Status != http.StatusOK || json.Unmarshal(res.Body, &tr) != nil || tr.AccessToken == "" {
		return "", &RejectedError{Method: o.Method(), Code: fmt.Sprint(res.Status), Detail: "oauth token: " + snippet(res.Body)}
	}
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	o.accessToken = tr.AccessToken
	o.expiresAt = time.Now().Add(ttl)
	return o.accessToken, nil
}

type orangeWebPaymentResp struct {
	Status     int    `json:"status"`
	Message    string `json:"message"`
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	NotifToken string `json:"notif_token"`
}

func (o *OrangeMoney) CreateInvoice(ctx context.Context, in InvoiceRequest) (Invoice, error) {
	tok, err := o.token(ctx)
	if err != nil {
		return Invoice{}, err
	}
	notifURL, err := withQuery(in.CallbackURL, "order_id", in.OrderID)
	if err != nil {
		return Invoice{}, err
	}
	payload := map[string]any{
		"merchant_key": o.cfg.MerchantKey,
		"currency":     o.money.Currency,
		"order_id":     in.OrderID,
		"amount":       json.Number(o.money.Major(in.Amount).String()),
		"return_url":   in.ReturnURL,
		"cancel_url":   in.CancelURL,
		"notif_url":    notifURL,
		"lang":         "fr",
		"reference":    in.Description,
	}
	req, err := newJSONRequest(ctx, http.MethodPost, o.baseURL+"/orange-money-webpay/"+o.cfg.Country+"/v1/webpayment", payload)
	if err != nil {
		return Invoice{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := do(o.client, o.Method(), req)
	if err != nil {
		return Invoice{}, err
	}
	var out orangeWebPaymentResp
	_ = json.Unmarshal(res.Body, &out)
	if res.Status >= 300 || out.PaymentURL == "" || out.NotifToken == "" {
		detail := out.Message
		if detail == "" {
			detail = snippet(res.Body)
		}
		return Invoice{}, &RejectedError{Method: o.Method(), Code: fmt.Sprint(res.Status), Detail: detail}
	}
	return Invoice{RedirectURL: out.PaymentURL, InvoiceToken: out.NotifToken}, nil
}

type orangeNotification struct {
	Status     string `json:"status"`
	NotifToken string `json:"notif_token"`
	TxnID      string `json:"txnid"`
}

func (o *OrangeMoney) NormalizeCallback(_ context.Context, cb Callback) (CallbackEvent, error) {
	var n orangeNotification
	if err := json.Unmarshal(cb.Body, &n); err != nil {
		return CallbackEvent{}, fmt.Errorf("orange_money: %w: %v", ErrMalformedCallback, err)
	}
	if n.NotifToken == "" {
		return CallbackEvent{}, fmt.Errorf("orange_money: %w: missing notif_token", ErrInvalidSignature)
	}
	ev := CallbackEvent{
		OrderID:      cb.Query.Get("order_id"),
		RawStatus:    n.Status,
		RawCode:      n.TxnID,
		InvoiceToken: n.NotifToken,
	}
	classify(&ev, ev.RawStatus, orangeSuccess, orangeFailure)
	return ev, nil
}

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
