package repository

import (
	"context"
	"database/sql"

	"github.com/papegu/senegal-livres/internal/model"
)

// BookRepo reads the catalog fields needed to price a checkout and to
// deliver a purchase.
type BookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

// GetByIDs returns the books found for ids keyed by id.  Unknown ids are
// simply absent from the map.
func (r *BookRepo) GetByIDs(ctx context.Context, ids []string) (map[string]model.Book, error) {
	out := make(map[string]model.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	q := `SELECT id, title, author, price, ebook_url FROM books WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b model.Book
		var ebook sql.NullString
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Price, &ebook); err != nil {
			return nil, err
		}
		b.EbookURL = ebook.String
		out[b.ID] = b
	}
	return out, rows.Err()
}
