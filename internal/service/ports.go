// Package service holds the payment core: checkout initiation,
// reconciliation of provider callbacks and purchase fulfillment.  It talks
// to storage through the narrow interfaces below so one concrete store is
// picked at wiring time.
package service

import (
	"context"
	"time"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/queue"
	"github.com/papegu/senegal-livres/internal/repository"
)

// TransactionStore persists payment attempts.  TransitionFromPending must
// be an atomic compare-and-set on status = pending and report whether this
// call performed the transition.
type TransactionStore interface {
	Create(ctx context.Context, t *model.Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Transaction, error)
	TransitionFromPending(ctx context.Context, orderID string, to model.TransactionStatus, sig model.ProviderSignal, confirmedAt *time.Time) (bool, error)
	RecordSignal(ctx context.Context, orderID string, sig model.ProviderSignal) error
	AssignInvoiceToken(ctx context.Context, orderID, token string) error
	ListValidatedWithoutPurchase(ctx context.Context, limit int) ([]model.Transaction, error)
}

// PurchaseStore must reject a second purchase for the same transaction
// with repository.ErrDuplicate.
type PurchaseStore interface {
	CreateOnce(ctx context.Context, p *model.Purchase) error
	ListByUser(ctx context.Context, userID uint64) ([]repository.PurchaseDetail, error)
}

type CartStore interface {
	Get(ctx context.Context, userID uint64) ([]string, error)
	Add(ctx context.Context, userID uint64, bookID string) ([]string, error)
	Remove(ctx context.Context, userID uint64, bookID string) ([]string, error)
	Clear(ctx context.Context, userID uint64) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// BookCatalog returns the books that exist among ids, keyed by id.
type BookCatalog interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]model.Book, error)
}

// Dispatcher hands a validated payment to fulfillment.  It must not block
// on fulfillment itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev queue.PaymentValidatedEvent) error
}
