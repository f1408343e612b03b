package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/papegu/senegal-livres/internal/model"
)

// PurchaseRepo provides access to the purchases table.  The table carries
// a unique key on transaction_id, which is what makes fulfillment safe to
// repeat.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// CreateOnce inserts the purchase for a transaction.  A second insert for
// the same transaction returns ErrDuplicate and leaves the first row intact.
func (r *PurchaseRepo) CreateOnce(ctx context.Context, p *model.Purchase) error {
	books, err := json.Marshal(nonNilStrings(p.BookIDs))
	if err != nil {
		return fmt.Errorf("encode book ids: %w", err)
	}
	now := time.Now().UTC()
	const q = `INSERT INTO purchases (transaction_id, user_id, customer_email, book_ids, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.TransactionID, nullUint(p.UserID), p.CustomerEmail, string(books), p.Amount, now)
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
	p.ID = uint64(id)
	p.CreatedAt = now
	return nil
}

// PurchasedBook is the catalog metadata joined onto a purchase listing.
type PurchasedBook struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	HasEbook bool   `json:"has_ebook"`
}

// PurchaseDetail is a purchase with its order id and book metadata, as
// returned to the buyer.
type PurchaseDetail struct {
	ID        uint64          `json:"id"`
	OrderID   string          `json:"order_id"`
	Amount    int64           `json:"amount"`
	BookIDs   []string        `json:"book_ids"`
	Books     []PurchasedBook `json:"books"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListByUser returns the user's purchases, newest first, with the books of
// each purchase populated from the catalog in a single extra query.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64) ([]PurchaseDetail, error) {
	const q = `SELECT p.id, t.order_id, p.amount, p.book_ids, p.created_at
		FROM purchases p
		JOIN transactions t ON t.id = p.transaction_id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]PurchaseDetail, 0)
	seen := make(map[string]struct{})
	bookIDs := make([]any, 0)
	for rows.Next() {
		var d PurchaseDetail
		var raw []byte
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Amount, &raw, &d.CreatedAt); err != nil {
			return nil, err
		}
		ids, err := decodeStrings(raw)
		if err != nil {
			return nil, fmt.Errorf("decode purchase %d book ids: %w", d.ID, err)
		}
		d.BookIDs = ids
		d.Books = []PurchasedBook{}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				bookIDs = append(bookIDs, id)
			}
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookIDs) == 0 {
		return details, nil
	}
	bq := `SELECT id, title, author, ebook_url FROM books WHERE id IN (` + placeholders(len(bookIDs)) + `)`
	brows, err := r.db.QueryContext(ctx, bq, bookIDs...)
	if err != nil {
		return nil, err
	}
	defer brows.Close()
	catalog := make(map[string]PurchasedBook, len(bookIDs))
	for brows.Next() {
		var b PurchasedBook
		var ebook sql.NullString
		if err := brows.Scan(&b.ID, &b.Title, &b.Author, &ebook); err != nil {
			return nil, err
		}
		b.HasEbook = ebook.Valid && ebook.String != ""
		catalog[b.ID] = b
	}
	if err := brows.Err(); err != nil {
		return nil, err
	}
	for i := range details {
		for _, id := range details[i].BookIDs {
			if b, ok := catalog[id]; ok {
				details[i].Books = append(details[i].Books, b)
			}
		}
	}
	return details, nil
}
