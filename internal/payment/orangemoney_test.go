package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papegu/senegal-livres/internal/config"
)

func TestOrangeMoneyCreateInvoice(t *testing.T) {
	var tokenCalls atomic.Int32
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v3/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "csecret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"token_type":"Bearer","access_token":"at_1","expires_in":3600}`))
	})
	mux.HandleFunc("/orange-money-webpay/dev/v1/webpayment", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at_1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":201,"message":"OK","pay_token":"pt_1","payment_url":"https://webpayment.orange/pt_1","notif_token":"nt_1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	om, err := NewOrangeMoney(config.OrangeMoneyConfig{
		ClientID: "cid", ClientSecret: "csecret", MerchantKey: "mk", BaseURL: srv.URL,
	}, Money{Currency: "XOF"}, srv.Client())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		inv, err := om.CreateInvoice(context.Background(), InvoiceRequest{
			OrderID: "ord-1", Amount: 5000, CallbackURL: "https://api.example/v1/payments/webhooks/orange_money",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://webpayment.orange/pt_1", inv.RedirectURL)
		assert.Equal(t, "nt_1", inv.InvoiceToken)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "access token is cached")

	assert.Equal(t, "mk", got["merchant_key"])
	assert.Equal(t, float64(5000), got["amount"])
	notif, err := url.Parse(got["notif_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "ord-1", notif.Query().Get("order_id"))
}

func TestOrangeMoneyTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()
	om, err := NewOrangeMoney(config.OrangeMoneyConfig{ClientID: "c", ClientSecret: "s", MerchantKey: "m", BaseURL: srv.URL}, Money{Currency: "XOF"}, srv.Client())
	require.NoError(t, err)

	_, err = om.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "ord-1", Amount: 1, CallbackURL: "https://api/cb"})
	var rej *RejectedError
	assert.True(t, errors.As(err, &rej))
}

func TestOrangeMoneyNormalizeCallback(t *testing.T) {
	om, err := NewOrangeMoney(config.OrangeMoneyConfig{ClientID: "c", ClientSecret: "s", MerchantKey: "m"}, Money{}, http.DefaultClient)
	require.NoError(t, err)
	assert.True(t, om.AuthenticatesByToken())

	q := url.Values{"order_id": {"ord-1"}}
	ev, err := om.NormalizeCallback(context.Background(), Callback{Query: q, Body: []byte(`{"status":"SUCCESS","notif_token":"nt_1","txnid":"MP1"}`)})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.Equal(t, "nt_1", ev.InvoiceToken)
	assert.Equal(t, "MP1", ev.RawCode)
	assert.True(t, ev.IsSuccess)

	ev, err = om.NormalizeCallback(context.Background(), Callback{Query: q, Body: []byte(`{"status":"EXPIRED","notif_token":"nt_1"}`)})
	require.NoError(t, err)
	assert.True(t, ev.IsFailure)

	ev, err = om.NormalizeCallback(context.Background(), Callback{Query: q, Body: []byte(`{"status":"INITIATED","notif_token":"nt_1"}`)})
	require.NoError(t, err)
	assert.False(t, ev.IsSuccess)
	assert.False(t, ev.IsFailure)

	_, err = om.NormalizeCallback(context.Background(), Callback{Query: q, Body: []byte(`{"status":"SUCCESS"}`)})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
