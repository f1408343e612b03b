// Package testutil provides in-memory stand-ins for the stores, mailer,
// providers and dispatcher used by service and handler tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/repository"
)

// Store keeps every table in memory behind one mutex.  Its
// TransitionFromPending is a compare-and-set on status like the SQL one.
type Store struct {
	mu        sync.Mutex
	txs       map[string]*model.Transaction
	nextTx    uint64
	purchases []model.Purchase
	carts     map[uint64][]string
	users     map[uint64]model.User
	books     map[string]model.Book

	// FailPurchase, when set, is returned by the next CreateOnce calls.
	FailPurchase error
	// FailGet, when set, is returned by GetByOrderID.
	FailGet error

	CartClears int
}

func NewStore() *Store {
	return &Store{
		txs:   map[string]*model.Transaction{},
		carts: map[uint64][]string{},
		users: map[uint64]model.User{},
		books: map[string]model.Book{},
	}
}

func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if _, ok := s.carts[u.ID]; !ok {
		s.carts[u.ID] = []string{}
	}
}

func (s *Store) AddBook(b model.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = b
}

func (s *Store) SetCart(userID uint64, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = append([]string{}, ids...)
}

// Transaction returns a copy of the stored row.
func (s *Store) Transaction(orderID string) (model.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[orderID]
	if !ok {
		return model.Transaction{}, false
	}
	return *t, true
}

func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *Store) PurchaseList() []model.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Purchase{}, s.purchases...)
}

func (s *Store) Cart(userID uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.carts[userID]...)
}

// transactions

func (s *Store) Create(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[t.OrderID]; ok {
		return repository.ErrDuplicate
	}
	s.nextTx++
	now := time.Now().UTC()
	t.ID = s.nextTx
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	cp.BookIDs = append([]string{}, t.BookIDs...)
	s.txs[t.OrderID] = &cp
	return nil
}

func (s *Store) GetByOrderID(_ context.Context, orderID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	t, ok := s.txs[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) TransitionFromPending(_ context.Context, orderID string, to model.TransactionStatus, sig model.ProviderSignal, confirmedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[orderID]
	if !ok || t.Status != model.StatusPending {
		return false, nil
	}
	t.Status = to
	applySignal(t, sig)
	if t.PaymentConfirmedAt == nil && confirmedAt != nil {
		at := *confirmedAt
		t.PaymentConfirmedAt = &at
	}
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) RecordSignal(_ context.Context, orderID string, sig model.ProviderSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.txs[orderID]; ok && t.Status == model.StatusPending {
		applySignal(t, sig)
	}
	return nil
}

func applySignal(t *model.Transaction, sig model.ProviderSignal) {
	if sig.Status != "" {
		t.ProviderStatus = sig.Status
	}
	if sig.ResponseCode != "" {
		t.ProviderResponseCode = sig.ResponseCode
	}
	if t.ProviderInvoiceToken == "" {
		t.ProviderInvoiceToken = sig.InvoiceToken
	}
}

func (s *Store) AssignInvoiceToken(_ context.Context, orderID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.txs[orderID]; ok && t.ProviderInvoiceToken == "" {
		t.ProviderInvoiceToken = token
	}
	return nil
}

func (s *Store) ListValidatedWithoutPurchase(_ context.Context, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bought := map[uint64]bool{}
	for _, p := range s.purchases {
		bought[p.TransactionID] = true
	}
	var out []model.Transaction
	for _, t := range s.txs {
		if t.Status == model.StatusValidated && !bought[t.ID] {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// purchases

func (s *Store) CreateOnce(_ context.Context, p *model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPurchase != nil {
		return s.FailPurchase
	}
	for _, existing := range s.purchases {
		if existing.TransactionID == p.TransactionID {
			return repository.ErrDuplicate
		}
	}
	p.ID = uint64(len(s.purchases) + 1)
	p.CreatedAt = time.Now().UTC()
	cp := *p
	cp.BookIDs = append([]string{}, p.BookIDs...)
	s.purchases = append(s.purchases, cp)
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID uint64) ([]repository.PurchaseDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []repository.PurchaseDetail{}
	for i := len(s.purchases) - 1; i >= 0; i-- {
		p := s.purchases[i]
		if p.UserID == nil || *p.UserID != userID {
			continue
		}
		d := repository.PurchaseDetail{ID: p.ID, Amount: p.Amount, BookIDs: p.BookIDs, CreatedAt: p.CreatedAt, Books: []repository.PurchasedBook{}}
		for _, t := range s.txs {
			if t.ID == p.TransactionID {
				d.OrderID = t.OrderID
			}
		}
		for _, id := range p.BookIDs {
			if b, ok := s.books[id]; ok {
				d.Books = append(d.Books, repository.PurchasedBook{ID: b.ID, Title: b.Title, Author: b.Author, HasEbook: b.HasEbook()})
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// carts

func (s *Store) Get(_ context.Context, userID uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]string{}, c...), nil
}

func (s *Store) Add(_ context.Context, userID uint64, bookID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, id := range c {
		if id == bookID {
			return append([]string{}, c...), nil
		}
	}
	c = append(c, bookID)
	s.carts[userID] = c
	return append([]string{}, c...), nil
}

func (s *Store) Remove(_ context.Context, userID uint64, bookID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := []string{}
	for _, id := range c {
		if id != bookID {
			out = append(out, id)
		}
	}
	s.carts[userID] = out
	return append([]string{}, out...), nil
}

func (s *Store) Clear(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CartClears++
	s.carts[userID] = []string{}
	return nil
}

// users

func (s *Store) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// books

func (s *Store) GetByIDs(_ context.Context, ids []string) (map[string]model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Book, len(ids))
	for _, id := range ids {
		if b, ok := s.books[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}
