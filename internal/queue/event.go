// Package queue carries the payment.validated event between the
// reconciliation step and the fulfillment worker over RabbitMQ.
package queue

import "time"

// PaymentValidatedEvent is published once per transaction, right after it
// wins the pending -> validated transition.  Consumers reload the
// transaction by OrderID; the remaining fields are for logs and tracing.
type PaymentValidatedEvent struct {
    OrderID       string   `json:"order_id"`
    TransactionID uint64   `json:"transaction_id"`
    PaymentMethod string   `json:"payment_method"`
    Amount        int64    `json:"amount"`
    Currency      string   `json:"currency"`
    UserID        *uint64  `json:"user_id,omitempty"`
    BookIDs       []string `json:"book_ids"`
    ValidatedAt   string   `json:"validated_at"`
}

// Stamp sets ValidatedAt in RFC 3339 UTC.
func (e *PaymentValidatedEvent) Stamp(t time.Time) {
    e.ValidatedAt = t.UTC().Format(time.RFC3339)
}
