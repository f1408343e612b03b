package model

import "time"

// TransactionStatus is the lifecycle state of a payment attempt.  The only
// transitions are pending -> validated and pending -> cancelled.
type TransactionStatus string

const (
    StatusPending   TransactionStatus = "pending"
    StatusValidated TransactionStatus = "validated"
    StatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether no further transition is defined out of s.
func (s TransactionStatus) Terminal() bool {
    return s == StatusValidated || s == StatusCancelled
}

// PaymentMethod tags the provider adapter that handled a transaction.
type PaymentMethod string

const (
    MethodPayDunya    PaymentMethod = "paydunya"
    MethodWave        PaymentMethod = "wave"
    MethodOrangeMoney PaymentMethod = "orange_money"
    MethodCard        PaymentMethod = "card"
    MethodSandbox     PaymentMethod = "sandbox"
)

// Valid reports whether m is one of the known provider tags.
func (m PaymentMethod) Valid() bool {
    switch m {
    case MethodPayDunya, MethodWave, MethodOrangeMoney, MethodCard, MethodSandbox:
        return true
    }
    return false
}

// Transaction records one payment attempt.  It is created pending at
// checkout and mutated only by reconciliation.  OrderID is the external
// correlation key handed to the provider and never changes.
//
// Fields:
//  ID                   – primary key identifier.
//  OrderID              – unique external order identifier.
//  Amount               – total in the smallest currency unit.
//  Currency             – ISO currency code.
//  PaymentMethod        – provider tag.
//  Status               – pending, validated or cancelled.
//  ProviderInvoiceToken – opaque provider token (empty until assigned).
//  ProviderStatus       – raw provider status, stored verbatim.
//  ProviderResponseCode – raw provider code, stored verbatim.
//  BookIDs              – purchased book identifiers in cart order.
//  CustomerEmail        – buyer contact used for delivery.
//  UserID               – buyer account (nil for guest checkout).
//  PaymentConfirmedAt   – set on the first transition into validated.
type Transaction struct {
    ID                   uint64            // transactions.id
    OrderID              string            // transactions.order_id
    Amount               int64             // transactions.amount
    Currency             string            // transactions.currency
    PaymentMethod        PaymentMethod     // transactions.payment_method
    Status               TransactionStatus // transactions.status
    ProviderInvoiceToken string            // transactions.provider_invoice_token (nullable)
    ProviderStatus       string            // transactions.provider_status (nullable)
    ProviderResponseCode string            // transactions.provider_response_code (nullable)
    BookIDs              []string          // transactions.book_ids (JSON)
    Description          string            // transactions.description
    CustomerEmail        string            // transactions.customer_email
    CustomerPhone        string            // transactions.customer_phone (nullable)
    UserID               *uint64           // transactions.user_id (nullable)
    CreatedAt            time.Time         // transactions.created_at
    UpdatedAt            time.Time         // transactions.updated_at
    PaymentConfirmedAt   *time.Time        // transactions.payment_confirmed_at (nullable)
}

// ProviderSignal is the raw provider output stored on a transaction for
// audit whenever a callback is applied.
type ProviderSignal struct {
    Status       string
    ResponseCode string
    InvoiceToken string
}
