package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/repository"
)

// CheckoutRequest starts a payment.  UserID is nil for guest checkout, in
// which case a contact (email or phone) is required.  Amount is optional;
// when set it must equal the catalog total.
type CheckoutRequest struct {
	UserID        *uint64
	PaymentMethod model.PaymentMethod
	BookIDs       []string
	Amount        int64
	Description   string
	CustomerEmail string
	CustomerPhone string
}

type CheckoutResult struct {
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
}

// Checkout creates pending transactions and payment intents.
type Checkout struct {
	Transactions TransactionStore
	Users        UserStore
	Books        BookCatalog
	Providers    *payment.Registry

	Currency      string
	PublicBaseURL string // buyer-facing return pages
	APIBaseURL    string // provider callbacks

	NewOrderID func() string
}

func NewCheckout(tx TransactionStore, users UserStore, books BookCatalog, providers *payment.Registry, currency, publicBase, apiBase string) *Checkout {
	return &Checkout{
		Transactions:  tx,
		Users:         users,
		Books:         books,
		Providers:     providers,
		Currency:      currency,
		PublicBaseURL: strings.TrimRight(publicBase, "/"),
		APIBaseURL:    strings.TrimRight(apiBase, "/"),
		NewOrderID:    NewOrderID,
	}
}

// NewOrderID returns a fresh external order identifier.
func NewOrderID() string {
	return "SL-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Initiate validates the buyer and the cart, stores a pending transaction
// and asks the provider for a payment intent.  The row exists before the
// provider is contacted so an early callback can find it.
func (s *Checkout) Initiate(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	bookIDs := dedupe(req.BookIDs)
	if len(bookIDs) == 0 {
		return CheckoutResult{}, fmt.Errorf("%w: book_ids is required", ErrInvalidRequest)
	}
	if !req.PaymentMethod.Valid() {
		return CheckoutResult{}, fmt.Errorf("%w: %q", payment.ErrUnknownMethod, req.PaymentMethod)
	}

	// Blocked buyers are refused before anything is written.
	email, err := s.checkBuyer(ctx, &req)
	if err != nil {
		return CheckoutResult{}, err
	}

	provider, err := s.Providers.Get(req.PaymentMethod)
	if err != nil {
		return CheckoutResult{}, err
	}

	total, err := s.price(ctx, bookIDs)
	if err != nil {
		return CheckoutResult{}, err
	}
	if req.Amount != 0 && req.Amount != total {
		return CheckoutResult{}, fmt.Errorf("%w: got %d, expected %d", ErrAmountMismatch, req.Amount, total)
	}

	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = fmt.Sprintf("Commande de %d livre(s)", len(bookIDs))
	}
	tx := &model.Transaction{
		OrderID:       s.NewOrderID(),
		Amount:        total,
		Currency:      s.Currency,
		PaymentMethod: req.PaymentMethod,
		Status:        model.StatusPending,
		BookIDs:       bookIDs,
		Description:   desc,
		CustomerEmail: email,
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		UserID:        req.UserID,
	}
	if err := s.Transactions.Create(ctx, tx); err != nil {
		return CheckoutResult{}, fmt.Errorf("create transaction: %w", err)
	}

	inv, err := provider.CreateInvoice(ctx, payment.InvoiceRequest{
		OrderID:       tx.OrderID,
		Amount:        tx.Amount,
		Description:   desc,
		CustomerEmail: tx.CustomerEmail,
		CustomerPhone: tx.CustomerPhone,
		BookIDs:       bookIDs,
		ReturnURL:     s.PublicBaseURL + "/payment/success?order_id=" + url.QueryEscape(tx.OrderID),
		CancelURL:     s.PublicBaseURL + "/payment/cancel?order_id=" + url.QueryEscape(tx.OrderID),
		CallbackURL:   s.APIBaseURL + "/v1/payments/webhooks/" + string(req.PaymentMethod),
	})
	if err != nil {
		s.abandon(ctx, tx.OrderID, err)
		return CheckoutResult{}, err
	}
	if inv.InvoiceToken != "" {
		if err := s.Transactions.AssignInvoiceToken(ctx, tx.OrderID, inv.InvoiceToken); err != nil {
			s.abandon(ctx, tx.OrderID, err)
			return CheckoutResult{}, fmt.Errorf("store invoice token: %w", err)
		}
	}
	log.Printf("checkout: order_id=%s method=%s amount=%d books=%d", tx.OrderID, tx.PaymentMethod, tx.Amount, len(bookIDs))
	return CheckoutResult{OrderID: tx.OrderID, RedirectURL: inv.RedirectURL}, nil
}

// checkBuyer enforces the blocked-buyer precondition and returns the
// e-mail to record on the transaction.
func (s *Checkout) checkBuyer(ctx context.Context, req *CheckoutRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if req.UserID != nil {
		u, err := s.Users.GetByID(ctx, *req.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUnknownBuyer
		}
		if err != nil {
			return "", fmt.Errorf("load buyer: %w", err)
		}
		if u.IsBlocked {
			return "", ErrBuyerBlocked
		}
		if email == "" {
			email = u.Email
		}
		return email, nil
	}
	if email == "" && strings.TrimSpace(req.CustomerPhone) == "" {
		return "", fmt.Errorf("%w: customer_email or customer_phone is required for guest checkout", ErrInvalidRequest)
	}
	if email != "" {
		u, err := s.Users.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return "", fmt.Errorf("load buyer: %w", err)
		case u.IsBlocked:
			return "", ErrBuyerBlocked
		}
	}
	return email, nil
}

func (s *Checkout) price(ctx context.Context, ids []string) (int64, error) {
	books, err := s.Books.GetByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load books: %w", err)
	}
	var total int64
	for _, id := range ids {
		b, ok := books[id]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownBook, id)
		}
		total += b.Price
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: order total must be positive", ErrInvalidRequest)
	}
	return total, nil
}

// abandon cancels a pending row whose intent could not be created, so it
// is never mistaken for a live payment.  It runs even if the request
// context is already gone.
func (s *Checkout) abandon(ctx context.Context, orderID string, cause error) {
	sig := model.ProviderSignal{Status: "intent_failed"}
	var rej *payment.RejectedError
	if errors.As(cause, &rej) {
		sig.ResponseCode = rej.Code
	}
	ok, err := s.Transactions.TransitionFromPending(context.WithoutCancel(ctx), orderID, model.StatusCancelled, sig, nil)
	if err != nil {
		log.Printf("checkout: ALERT order_id=%s intent failed (%v) and cancel failed: %v", orderID, cause, err)
		return
	}
	log.Printf("checkout: order_id=%s intent failed, cancelled=%t: %v", orderID, ok, cause)
}

// dedupe trims ids and drops blanks and repeats, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
