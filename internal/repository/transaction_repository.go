package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/papegu/senegal-livres/internal/model"
)

// TransactionRepo persists payment attempts in the transactions table.
// Status changes go through TransitionFromPending, a conditional update
// keyed on the current status, so concurrent callbacks for one order
// cannot both win.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, order_id, amount, currency, payment_method, status,
	provider_invoice_token, provider_status, provider_response_code, book_ids,
	description, customer_email, customer_phone, user_id,
	created_at, updated_at, payment_confirmed_at`

// Create inserts a pending transaction and populates its ID and
// timestamps.  A clashing order_id yields ErrDuplicate.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	books, err := json.Marshal(nonNilStrings(t.BookIDs))
	if err != nil {
		return fmt.Errorf("encode book ids: %w", err)
	}
	now := time.Now().UTC()
	const q = `INSERT INTO transactions
		(order_id, amount, currency, payment_method, status, book_ids, description,
		 customer_email, customer_phone, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		t.OrderID, t.Amount, t.Currency, string(t.PaymentMethod), string(t.Status), string(books),
		t.Description, t.CustomerEmail, nullString(t.CustomerPhone), nullUint(t.UserID), now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetByOrderID loads a transaction by its external order id.
func (r *TransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = ? LIMIT 1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// TransitionFromPending moves a pending transaction to the given terminal
// status and stores the raw provider signal.  It reports false when the
// row was not pending any more (or does not exist); in that case nothing
// was written.  confirmedAt is only stamped when the column is still NULL.
func (r *TransactionRepo) TransitionFromPending(ctx context.Context, orderID string, to model.TransactionStatus, sig model.ProviderSignal, confirmedAt *time.Time) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("transition target %q is not terminal", to)
	}
	var stamp sql.NullTime
	if confirmedAt != nil {
		stamp = sql.NullTime{Time: confirmedAt.UTC(), Valid: true}
	}
	const q = `UPDATE transactions SET status = ?,
		provider_status = COALESCE(NULLIF(?, ''), provider_status),
		provider_response_code = COALESCE(NULLIF(?, ''), provider_response_code),
		provider_invoice_token = COALESCE(provider_invoice_token, NULLIF(?, '')),
		payment_confirmed_at = COALESCE(payment_confirmed_at, ?),
		updated_at = UTC_TIMESTAMP()
		WHERE order_id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, string(to), sig.Status, sig.ResponseCode, sig.InvoiceToken, stamp, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordSignal stores the raw provider fields of an indeterminate callback
// without touching the status.  Terminal rows are left alone.
func (r *TransactionRepo) RecordSignal(ctx context.Context, orderID string, sig model.ProviderSignal) error {
	const q = `UPDATE transactions SET
		provider_status = COALESCE(NULLIF(?, ''), provider_status),
		provider_response_code = COALESCE(NULLIF(?, ''), provider_response_code),
		updated_at = UTC_TIMESTAMP()
		WHERE order_id = ? AND status = 'pending'`
	_, err := r.db.ExecContext(ctx, q, sig.Status, sig.ResponseCode, orderID)
	return err
}

// AssignInvoiceToken records the provider token returned when the intent
// was created.  A token that is already set is kept.
func (r *TransactionRepo) AssignInvoiceToken(ctx context.Context, orderID, token string) error {
	const q = `UPDATE transactions SET provider_invoice_token = ?, updated_at = UTC_TIMESTAMP()
		WHERE order_id = ? AND provider_invoice_token IS NULL`
	_, err := r.db.ExecContext(ctx, q, token, orderID)
	return err
}

// ListValidatedWithoutPurchase returns validated transactions that have no
// purchase row yet, oldest first.  These are paid orders whose fulfillment
// never completed.
func (r *TransactionRepo) ListValidatedWithoutPurchase(ctx context.Context, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + prefixColumns("t", transactionColumns) + `
		FROM transactions t
		LEFT JOIN purchases p ON p.transaction_id = t.id
		WHERE t.status = 'validated' AND p.id IS NULL
		ORDER BY t.payment_confirmed_at ASC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (*model.Transaction, error) {
	var (
		t           model.Transaction
		method      string
		status      string
		token       sql.NullString
		provStatus  sql.NullString
		provCode    sql.NullString
		bookIDs     []byte
		phone       sql.NullString
		userID      sql.NullInt64
		confirmedAt sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.OrderID, &t.Amount, &t.Currency, &method, &status,
		&token, &provStatus, &provCode, &bookIDs,
		&t.Description, &t.CustomerEmail, &phone, &userID,
		&t.CreatedAt, &t.UpdatedAt, &confirmedAt); err != nil {
		return nil, err
	}
	t.PaymentMethod = model.PaymentMethod(method)
	t.Status = model.TransactionStatus(status)
	t.ProviderInvoiceToken = token.String
	t.ProviderStatus = provStatus.String
	t.ProviderResponseCode = provCode.String
	t.CustomerPhone = phone.String
	ids, err := decodeStrings(bookIDs)
	if err != nil {
		return nil, fmt.Errorf("decode book ids for %s: %w", t.OrderID, err)
	}
	t.BookIDs = ids
	if userID.Valid {
		uid := uint64(userID.Int64)
		t.UserID = &uid
	}
	if confirmedAt.Valid {
		ts := confirmedAt.Time.UTC()
		t.PaymentConfirmedAt = &ts
	}
	return &t, nil
}
