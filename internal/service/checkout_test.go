package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
)

func TestCheckoutCreatesPendingTransaction(t *testing.T) {
	h := newHarness(t)
	res, err := h.checkout.Initiate(context.Background(), CheckoutRequest{
		UserID:        ptr(buyerID),
		PaymentMethod: model.MethodSandbox,
		BookIDs:       []string{"b1"},
		Amount:        5000,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, "https://pay.example/sandbox", res.RedirectURL)

	tx, ok := h.store.Transaction("ord-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Equal(t, int64(5000), tx.Amount)
	assert.Equal(t, "XOF", tx.Currency)
	assert.Equal(t, []string{"b1"}, tx.BookIDs)
	assert.Equal(t, "awa@example.sn", tx.CustomerEmail)
	assert.Equal(t, "tok_sandbox", tx.ProviderInvoiceToken)
	require.NotNil(t, tx.UserID)
	assert.Equal(t, buyerID, *tx.UserID)
	assert.Nil(t, tx.PaymentConfirmedAt)

	reqs := h.provider.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ord-1", reqs[0].OrderID)
	assert.Equal(t, []string{"b1"}, reqs[0].BookIDs)
	assert.Equal(t, "https://api.example/v1/payments/webhooks/sandbox", reqs[0].CallbackURL)
	assert.Equal(t, "https://shop.example/payment/success?order_id=ord-1", reqs[0].ReturnURL)
}

func TestCheckoutPricesFromCatalog(t *testing.T) {
	h := newHarness(t)
	res, err := h.checkout.Initiate(context.Background(), CheckoutRequest{
		PaymentMethod: model.MethodSandbox,
		BookIDs:       []string{"b1", " b2 ", "b1", ""},
		CustomerEmail: " Guest@Example.SN ",
	})
	require.NoError(t, err)

	tx, ok := h.store.Transaction(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, int64(12000), tx.Amount)
	assert.Equal(t, []string{"b1", "b2"}, tx.BookIDs)
	assert.Equal(t, "guest@example.sn", tx.CustomerEmail)
	assert.Nil(t, tx.UserID)
	assert.Equal(t, "Commande de 2 livre(s)", tx.Description)
}

func TestCheckoutRejectsBlockedBuyerBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name string
		req  CheckoutRequest
	}{
		{name: "signed-in blocked user", req: CheckoutRequest{UserID: ptr(blockedID)}},
		{name: "guest with blocked email", req: CheckoutRequest{CustomerEmail: "BLOCKED@example.sn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.req.PaymentMethod = model.MethodSandbox
			tt.req.BookIDs = []string{"b1"}
			_, err := h.checkout.Initiate(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrBuyerBlocked)
			assert.Zero(t, h.store.TransactionCount())
			assert.Empty(t, h.provider.Requests())
		})
	}
}

func TestCheckoutValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CheckoutRequest
		want error
	}{
		{
			name: "no books",
			req:  CheckoutRequest{UserID: ptr(buyerID), PaymentMethod: model.MethodSandbox},
			want: ErrInvalidRequest,
		},
		{
			name: "unknown book",
			req:  CheckoutRequest{UserID: ptr(buyerID), PaymentMethod: model.MethodSandbox, BookIDs: []string{"b1", "nope"}},
			want: ErrUnknownBook,
		},
		{
			name: "amount differs from catalog",
			req:  CheckoutRequest{UserID: ptr(buyerID), PaymentMethod: model.MethodSandbox, BookIDs: []string{"b1"}, Amount: 100},
			want: ErrAmountMismatch,
		},
		{
			name: "unknown method",
			req:  CheckoutRequest{UserID: ptr(buyerID), PaymentMethod: "cash", BookIDs: []string{"b1"}},
			want: payment.ErrUnknownMethod,
		},
		{
			name: "method without credentials",
			req:  CheckoutRequest{UserID: ptr(buyerID), PaymentMethod: model.MethodWave, BookIDs: []string{"b1"}},
			want: payment.ErrMethodUnavailable,
		},
		{
			name: "guest without contact",
			req:  CheckoutRequest{PaymentMethod: model.MethodSandbox, BookIDs: []string{"b1"}},
			want: ErrInvalidRequest,
		},
		{
			name: "token for a deleted user",
			req:  CheckoutRequest{UserID: ptr(404), PaymentMethod: model.MethodSandbox, BookIDs: []string{"b1"}},
			want: ErrUnknownBuyer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.registry.MarkUnavailable(model.MethodWave, payment.ErrMissingCredentials)
			_, err := h.checkout.Initiate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.store.TransactionCount())
		})
	}
}

func TestCheckoutIntentFailureCancelsRow(t *testing.T) {
	h := newHarness(t)
	h.provider.InvoiceErr = &payment.RejectedError{Method: model.MethodSandbox, Code: "KYC_REQUIRED", Detail: "merchant not verified"}

	_, err := h.checkout.Initiate(context.Background(), CheckoutRequest{
		UserID: ptr(buyerID), PaymentMethod: model.MethodSandbox, BookIDs: []string{"b1"},
	})
	var rej *payment.RejectedError
	require.True(t, errors.As(err, &rej))

	tx, ok := h.store.Transaction("ord-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusCancelled, tx.Status)
	assert.Equal(t, "intent_failed", tx.ProviderStatus)
	assert.Equal(t, "KYC_REQUIRED", tx.ProviderResponseCode)
}

func TestCheckoutProviderUnreachableCancelsRow(t *testing.T) {
	h := newHarness(t)
	h.provider.InvoiceErr = payment.ErrProviderUnreachable

	_, err := h.checkout.Initiate(context.Background(), CheckoutRequest{
		UserID: ptr(buyerID), PaymentMethod: model.MethodSandbox, BookIDs: []string{"b1"},
	})
	assert.ErrorIs(t, err, payment.ErrProviderUnreachable)
	tx, _ := h.store.Transaction("ord-1")
	assert.Equal(t, model.StatusCancelled, tx.Status)
}

func TestNewOrderID(t *testing.T) {
	a, b := NewOrderID(), NewOrderID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "SL-"))
	assert.Len(t, a, 35)
}
