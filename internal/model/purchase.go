package model

import "time"

// Purchase is a buyer's entitlement to the books paid for by one validated
// transaction.  At most one purchase exists per transaction.
type Purchase struct {
    ID            uint64    // purchases.id
    TransactionID uint64    // purchases.transaction_id (unique)
    OrderID       string    // joined from transactions.order_id
    UserID        *uint64   // purchases.user_id (nullable for guests)
    CustomerEmail string    // purchases.customer_email
    BookIDs       []string  // purchases.book_ids (JSON)
    Amount        int64     // purchases.amount
    CreatedAt     time.Time // purchases.created_at
}
