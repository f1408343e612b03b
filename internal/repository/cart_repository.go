package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// CartRepo manages the per-user cart stored as a JSON list on users.cart.
// Add and Remove lock the user row so concurrent edits do not lose ids.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the given database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// Get returns the user's cart in insertion order.
func (r *CartRepo) Get(ctx context.Context, userID uint64) ([]string, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT cart FROM users WHERE id = ? LIMIT 1`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeStrings(raw)
}

// Add appends bookID unless it is already present and returns the cart.
func (r *CartRepo) Add(ctx context.Context, userID uint64, bookID string) ([]string, error) {
	return r.mutate(ctx, userID, func(cart []string) []string {
		for _, id := range cart {
			if id == bookID {
				return cart
			}
		}
		return append(cart, bookID)
	})
}

// Remove drops bookID if present and returns the cart.
func (r *CartRepo) Remove(ctx context.Context, userID uint64, bookID string) ([]string, error) {
	return r.mutate(ctx, userID, func(cart []string) []string {
		out := cart[:0]
		for _, id := range cart {
			if id != bookID {
				out = append(out, id)
			}
		}
		return out
	})
}

// Clear empties the user's cart.
func (r *CartRepo) Clear(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET cart = '[]' WHERE id = ?`, userID)
	return err
}

func (r *CartRepo) mutate(ctx context.Context, userID uint64, fn func([]string) []string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT cart FROM users WHERE id = ? FOR UPDATE`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cart, err := decodeStrings(raw)
	if err != nil {
		return nil, err
	}
	cart = fn(cart)
	encoded, err := json.Marshal(nonNilStrings(cart))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET cart = ? WHERE id = ?`, string(encoded), userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return nonNilStrings(cart), nil
}
