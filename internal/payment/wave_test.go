package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papegu/senegal-livres/internal/config"
)

func newTestWave(t *testing.T, h http.HandlerFunc) *Wave {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	w, err := NewWave(config.WaveConfig{APIKey: "wave_key", WebhookSecret: "wave_secret", BaseURL: srv.URL}, Money{Currency: "XOF"}, srv.Client())
	require.NoError(t, err)
	return w
}

func TestWaveCreateInvoice(t *testing.T) {
	var got map[string]string
	w := newTestWave(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer wave_key", r.Header.Get("Authorization"))
		assert.Equal(t, "ord-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = rw.Write([]byte(`{"id":"cos-1","wave_launch_url":"https://pay.wave.com/c/cos-1","checkout_status":"open"}`))
	})
	inv, err := w.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "ord-1", Amount: 5000, ReturnURL: "ok", CancelURL: "ko"})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.wave.com/c/cos-1", inv.RedirectURL)
	assert.Equal(t, "cos-1", inv.InvoiceToken)
	assert.Equal(t, "5000", got["amount"])
	assert.Equal(t, "XOF", got["currency"])
	assert.Equal(t, "ord-1", got["client_reference"])
}

func TestWaveCreateInvoiceRejected(t *testing.T) {
	w := newTestWave(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusForbidden)
		_, _ = rw.Write([]byte(`{"code":"not-kyc-verified","message":"Merchant account not verified"}`))
	})
	_, err := w.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "ord-1", Amount: 5000})
	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "not-kyc-verified", rej.Code)
}

func signedWaveCallback(t *testing.T, secret string, body string, at time.Time) Callback {
	t.Helper()
	return Callback{
		Header: http.Header{"Wave-Signature": {signTimestampedHMAC(secret, "", []byte(body), at)}},
		Body:   []byte(body),
	}
}

func TestWaveNormalizeCallback(t *testing.T) {
	w := newTestWave(t, func(http.ResponseWriter, *http.Request) {})
	tests := []struct {
		name             string
		body             string
		success, failure bool
	}{
		{
			name:    "completed and succeeded",
			body:    `{"type":"checkout.session.completed","data":{"id":"cos-1","client_reference":"ord-1","payment_status":"succeeded"}}`,
			success: true,
		},
		{
			name: "completed but processing",
			body: `{"type":"checkout.session.completed","data":{"id":"cos-1","client_reference":"ord-1","payment_status":"processing"}}`,
		},
		{
			name:    "payment failed event",
			body:    `{"type":"checkout.session.payment_failed","data":{"id":"cos-1","client_reference":"ord-1","payment_status":"failed"}}`,
			failure: true,
		},
		{
			name: "unknown event with succeeded status",
			body: `{"type":"merchant.payment_received","data":{"id":"cos-1","client_reference":"ord-1","payment_status":"succeeded"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := w.NormalizeCallback(context.Background(), signedWaveCallback(t, "wave_secret", tt.body, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, "ord-1", ev.OrderID)
			assert.Equal(t, "cos-1", ev.InvoiceToken)
			assert.Equal(t, tt.success, ev.IsSuccess)
			assert.Equal(t, tt.failure, ev.IsFailure)
		})
	}
}

func TestWaveNormalizeCallbackBadSignature(t *testing.T) {
	w := newTestWave(t, func(http.ResponseWriter, *http.Request) {})
	body := `{"type":"checkout.session.completed","data":{"client_reference":"ord-1","payment_status":"succeeded"}}`
	_, err := w.NormalizeCallback(context.Background(), signedWaveCallback(t, "not_the_secret", body, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
