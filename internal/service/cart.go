package service

import (
	"context"
	"fmt"
	"strings"
)

// Cart exposes idempotent set operations over a user's cart.
type Cart struct {
	Carts CartStore
	Books BookCatalog
}

func (s *Cart) Get(ctx context.Context, userID uint64) ([]string, error) {
	return s.Carts.Get(ctx, userID)
}

// Apply runs action ("add" or "remove") for bookID and returns the new
// cart.  Adding checks the book exists; removing an absent id is a no-op.
func (s *Cart) Apply(ctx context.Context, userID uint64, bookID, action string) ([]string, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, fmt.Errorf("%w: book_id is required", ErrInvalidRequest)
	}
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "add":
		books, err := s.Books.GetByIDs(ctx, []string{bookID})
		if err != nil {
			return nil, err
		}
		if _, ok := books[bookID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBook, bookID)
		}
		return s.Carts.Add(ctx, userID, bookID)
	case "remove":
		return s.Carts.Remove(ctx, userID, bookID)
	default:
		return nil, fmt.Errorf("%w: action must be add or remove", ErrInvalidRequest)
	}
}
