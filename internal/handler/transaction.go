package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/model"
)

// TransactionReader is the lookup side of the transaction store.
type TransactionReader interface {
	GetByOrderID(ctx context.Context, orderID string) (*model.Transaction, error)
}

// TransactionHandler serves the post-payment landing page lookups.
type TransactionHandler struct {
	Transactions TransactionReader
}

type transactionView struct {
	OrderID            string     `json:"order_id"`
	Status             string     `json:"status"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	PaymentMethod      string     `json:"payment_method"`
	BookIDs            []string   `json:"book_ids"`
	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at"`
}

// Get handles GET /v1/transactions/:orderId.  Only public fields are
// returned; raw provider data stays internal.
func (h *TransactionHandler) Get(c echo.Context) error {
	orderID := strings.TrimSpace(c.Param("orderId"))
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
	}
	tx, err := h.Transactions.GetByOrderID(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, transactionView{
		OrderID:            tx.OrderID,
		Status:             string(tx.Status),
		Amount:             tx.Amount,
		Currency:           tx.Currency,
		PaymentMethod:      string(tx.PaymentMethod),
		BookIDs:            tx.BookIDs,
		PaymentConfirmedAt: tx.PaymentConfirmedAt,
	})
}
