package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/notify"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/queue"
	"github.com/papegu/senegal-livres/internal/repository"
)

// Fulfiller turns a validated transaction into a purchase and its side
// effects.  The unique purchase per transaction is the idempotency key:
// only the call that creates it clears the cart and sends mail.
type Fulfiller struct {
	Transactions TransactionStore
	Purchases    PurchaseStore
	Carts        CartStore
	Users        UserStore
	Books        BookCatalog
	Mailer       notify.Mailer
	Money        payment.Money
	AdminEmail   string
}

// HandleEvent adapts Fulfill to the queue consumer.
func (f *Fulfiller) HandleEvent(ctx context.Context, ev queue.PaymentValidatedEvent) error {
	return f.Fulfill(ctx, ev.OrderID)
}

// Fulfill creates the purchase for orderID.  A repeated call is a no-op.
// Only a storage failure on the purchase is returned; notification and
// cart problems are logged.
func (f *Fulfiller) Fulfill(ctx context.Context, orderID string) error {
	tx, err := f.Transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", orderID, err)
	}
	if tx.Status != model.StatusValidated {
		return fmt.Errorf("%w: %s is %s", ErrNotValidated, orderID, tx.Status)
	}

	p := &model.Purchase{
		TransactionID: tx.ID,
		OrderID:       tx.OrderID,
		UserID:        tx.UserID,
		CustomerEmail: tx.CustomerEmail,
		BookIDs:       tx.BookIDs,
		Amount:        tx.Amount,
	}
	if err := f.Purchases.CreateOnce(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Printf("fulfillment: order_id=%s already fulfilled", orderID)
			return nil
		}
		log.Printf("fulfillment: ALERT order_id=%s paid but purchase not recorded: %v", orderID, err)
		return fmt.Errorf("create purchase: %w", err)
	}
	log.Printf("fulfillment: order_id=%s purchase_id=%d books=%d", orderID, p.ID, len(p.BookIDs))

	if tx.UserID != nil {
		if err := f.Carts.Clear(ctx, *tx.UserID); err != nil {
			log.Printf("fulfillment: order_id=%s clear cart for user %d failed: %v", orderID, *tx.UserID, err)
		}
	}
	f.deliver(ctx, tx)
	return nil
}

// deliver sends the e-book links and the physical-delivery notices.
func (f *Fulfiller) deliver(ctx context.Context, tx *model.Transaction) {
	books, err := f.Books.GetByIDs(ctx, tx.BookIDs)
	if err != nil {
		log.Printf("fulfillment: order_id=%s load books failed, no delivery mail sent: %v", tx.OrderID, err)
		return
	}
	var ebooks, physical []notify.DeliveryLine
	for _, id := range tx.BookIDs {
		b, ok := books[id]
		if !ok {
			// Removed from the catalog since checkout; ship it by hand.
			physical = append(physical, notify.DeliveryLine{Title: id})
			continue
		}
		line := notify.DeliveryLine{Title: b.Title, Author: b.Author}
		if b.HasEbook() {
			line.Download = b.EbookURL
			ebooks = append(ebooks, line)
		} else {
			physical = append(physical, line)
		}
	}

	to := f.recipient(ctx, tx)
	base := notify.Order{
		OrderID:       tx.OrderID,
		Amount:        f.Money.Format(tx.Amount),
		CustomerEmail: to,
		CustomerPhone: tx.CustomerPhone,
	}
	if len(ebooks) > 0 {
		o := base
		o.Books = ebooks
		f.send(ctx, tx.OrderID, to, notify.EbookDelivery, o)
	}
	if len(physical) > 0 {
		o := base
		o.Books = physical
		f.send(ctx, tx.OrderID, to, notify.PhysicalDelivery, o)
		if f.AdminEmail == "" {
			log.Printf("fulfillment: ALERT order_id=%s needs physical delivery but ADMIN_EMAIL is not set", tx.OrderID)
		} else {
			f.send(ctx, tx.OrderID, f.AdminEmail, notify.AdminPhysicalDelivery, o)
		}
	}
}

func (f *Fulfiller) recipient(ctx context.Context, tx *model.Transaction) string {
	if tx.CustomerEmail != "" || tx.UserID == nil || f.Users == nil {
		return tx.CustomerEmail
	}
	u, err := f.Users.GetByID(ctx, *tx.UserID)
	if err != nil {
		log.Printf("fulfillment: order_id=%s buyer lookup failed: %v", tx.OrderID, err)
		return ""
	}
	return u.Email
}

type renderFunc func(notify.Order) (string, string, error)

func (f *Fulfiller) send(ctx context.Context, orderID, to string, render renderFunc, o notify.Order) {
	if to == "" {
		log.Printf("fulfillment: order_id=%s no e-mail address, notification skipped", orderID)
		return
	}
	subject, body, err := render(o)
	if err != nil {
		log.Printf("fulfillment: order_id=%s render mail failed: %v", orderID, err)
		return
	}
	if err := f.Mailer.Send(ctx, to, subject, body); err != nil {
		log.Printf("fulfillment: order_id=%s mail to %s failed: %v", orderID, to, err)
	}
}
