package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papegu/senegal-livres/internal/config"
)

func newTestCard(t *testing.T, h http.HandlerFunc) *Card {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewCard(config.CardConfig{SecretKey: "sk_test", WebhookSecret: "whsec", BaseURL: srv.URL}, Money{Currency: "XOF"}, srv.Client())
	require.NoError(t, err)
	return c
}

func TestCardCreateInvoice(t *testing.T) {
	c := newTestCard(t, func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		assert.Equal(t, "sk_test", user)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ord-1", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "5000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "xof", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "b1", r.PostForm.Get("metadata[book_ids]"))
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://checkout.example/cs_1"}`))
	})
	inv, err := c.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "ord-1", Amount: 5000, BookIDs: []string{"b1"}})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", inv.RedirectURL)
	assert.Equal(t, "cs_1", inv.InvoiceToken)
}

func TestCardCreateInvoiceRejected(t *testing.T) {
	c := newTestCard(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"amount_too_small","message":"Amount too small"}}`))
	})
	_, err := c.CreateInvoice(context.Background(), InvoiceRequest{OrderID: "ord-1", Amount: 1})
	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "amount_too_small", rej.Code)
}

func TestCardNormalizeCallback(t *testing.T) {
	c := newTestCard(t, func(http.ResponseWriter, *http.Request) {})
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	tests := []struct {
		name             string
		body             string
		success, failure bool
	}{
		{
			name:    "completed and paid",
			body:    `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"ord-1","payment_status":"paid"}}}`,
			success: true,
		},
		{
			name: "completed but unpaid",
			body: `{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"ord-1","payment_status":"unpaid"}}}`,
		},
		{
			name:    "async succeeded",
			body:    `{"type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs_1","client_reference_id":"ord-1","payment_status":"paid"}}}`,
			success: true,
		},
		{
			name:    "expired",
			body:    `{"type":"checkout.session.expired","data":{"object":{"id":"cs_1","client_reference_id":"ord-1"}}}`,
			failure: true,
		},
		{
			name: "order id from metadata",
			body: `{"type":"payment_intent.created","data":{"object":{"id":"cs_1","metadata":{"order_id":"ord-1"}}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := Callback{
				Header: http.Header{"Stripe-Signature": {signTimestampedHMAC("whsec", ".", []byte(tt.body), now)}},
				Body:   []byte(tt.body),
			}
			ev, err := c.NormalizeCallback(context.Background(), cb)
			require.NoError(t, err)
			assert.Equal(t, "ord-1", ev.OrderID)
			assert.Equal(t, "cs_1", ev.InvoiceToken)
			assert.Equal(t, tt.success, ev.IsSuccess)
			assert.Equal(t, tt.failure, ev.IsFailure)
		})
	}
}

func TestCardNormalizeCallbackStaleSignature(t *testing.T) {
	c := newTestCard(t, func(http.ResponseWriter, *http.Request) {})
	body := []byte(`{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"ord-1","payment_status":"paid"}}}`)
	signedAt := time.Unix(1700000000, 0)
	c.now = func() time.Time { return signedAt.Add(10 * time.Minute) }
	_, err := c.NormalizeCallback(context.Background(), Callback{
		Header: http.Header{"Stripe-Signature": {signTimestampedHMAC("whsec", ".", body, signedAt)}},
		Body:   body,
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCardConfirm(t *testing.T) {
	c := newTestCard(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"cs_1","status":"complete","payment_status":"paid","client_reference_id":"ord-1"}`))
	})
	ev, err := c.Confirm(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, ev.IsSuccess)
	assert.Equal(t, "ord-1", ev.OrderID)
}
