package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/queue"
	"github.com/papegu/senegal-livres/internal/repository"
)

// Outcome says what a callback did to the transaction.
type Outcome string

const (
	OutcomeValidated     Outcome = "validated"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeIndeterminate Outcome = "indeterminate"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeUnmatched     Outcome = "unmatched"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeRejected      Outcome = "rejected"
	OutcomeError         Outcome = "error"
)

// Reconciler is the only writer of transaction status.  Every transition
// goes through the store's conditional update, so the first callback to
// move a pending row wins and later ones observe a terminal state.
type Reconciler struct {
	Transactions TransactionStore
	Providers    *payment.Registry
	Dispatcher   Dispatcher

	// ConfirmWithProvider enables the advisory confirmation call after a
	// success callback.  Its result never changes the stored status.
	ConfirmWithProvider bool
	ConfirmTimeout      time.Duration

	Now func() time.Time

	wg sync.WaitGroup
}

func NewReconciler(tx TransactionStore, providers *payment.Registry, d Dispatcher, confirm bool, confirmTimeout time.Duration) *Reconciler {
	return &Reconciler{
		Transactions:        tx,
		Providers:           providers,
		Dispatcher:          d,
		ConfirmWithProvider: confirm,
		ConfirmTimeout:      confirmTimeout,
		Now:                 time.Now,
	}
}

// HandleCallback normalizes a raw callback for method and applies it.
// It never returns an error: callers acknowledge the provider whatever
// happens here, and everything worth knowing is logged.
func (r *Reconciler) HandleCallback(ctx context.Context, method model.PaymentMethod, cb payment.Callback) Outcome {
	p, err := r.Providers.Get(method)
	if err != nil {
		log.Printf("reconcile: ALERT callback for unusable method %q: %v", method, err)
		return OutcomeIgnored
	}
	ev, err := p.NormalizeCallback(ctx, cb)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			log.Printf("reconcile: ALERT %s callback failed authentication: %v", method, err)
		} else {
			log.Printf("reconcile: %s callback unreadable: %v", method, err)
		}
		return OutcomeRejected
	}
	out, err := r.Apply(ctx, p, ev)
	if err != nil {
		log.Printf("reconcile: order_id=%s method=%s apply failed: %v", ev.OrderID, method, err)
	}
	return out
}

// Apply reconciles one canonical event against the stored transaction.
func (r *Reconciler) Apply(ctx context.Context, p payment.Provider, ev payment.CallbackEvent) (Outcome, error) {
	if ev.OrderID == "" {
		log.Printf("reconcile: ALERT %s callback without order id (status=%q token=%q)", p.Method(), ev.RawStatus, ev.InvoiceToken)
		return OutcomeUnmatched, nil
	}
	tx, err := r.Transactions.GetByOrderID(ctx, ev.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("reconcile: ALERT unmatched callback order_id=%s method=%s status=%q", ev.OrderID, p.Method(), ev.RawStatus)
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return OutcomeError, fmt.Errorf("load transaction: %w", err)
	}

	if tx.PaymentMethod != p.Method() {
		log.Printf("reconcile: ALERT order_id=%s callback from %s but transaction uses %s", tx.OrderID, p.Method(), tx.PaymentMethod)
		return OutcomeIgnored, nil
	}
	if !tokenMatches(p, tx.ProviderInvoiceToken, ev.InvoiceToken) {
		log.Printf("reconcile: ALERT order_id=%s invoice token mismatch (stored=%q got=%q)", tx.OrderID, tx.ProviderInvoiceToken, ev.InvoiceToken)
		return OutcomeIgnored, nil
	}
	if tx.Status.Terminal() {
		if tx.Status == model.StatusCancelled && ev.IsSuccess {
			paidAfterCancel(tx.OrderID, p.Method(), ev)
			return OutcomeDuplicate, nil
		}
		log.Printf("reconcile: order_id=%s already %s, duplicate callback (status=%q)", tx.OrderID, tx.Status, ev.RawStatus)
		return OutcomeDuplicate, nil
	}

	sig := ev.Signal()
	switch {
	case ev.IsSuccess:
		now := r.Now().UTC()
		won, err := r.Transactions.TransitionFromPending(ctx, tx.OrderID, model.StatusValidated, sig, &now)
		if err != nil {
			return OutcomeError, fmt.Errorf("validate: %w", err)
		}
		if !won {
			if cur, err := r.Transactions.GetByOrderID(ctx, tx.OrderID); err == nil && cur.Status == model.StatusCancelled {
				paidAfterCancel(tx.OrderID, p.Method(), ev)
			}
			return OutcomeDuplicate, nil
		}
		log.Printf("reconcile: order_id=%s validated via %s (status=%q code=%q)", tx.OrderID, p.Method(), ev.RawStatus, ev.RawCode)
		tx.Status = model.StatusValidated
		tx.PaymentConfirmedAt = &now
		r.dispatch(ctx, tx)
		r.confirm(ctx, p, tx, ev)
		return OutcomeValidated, nil

	case ev.IsFailure:
		won, err := r.Transactions.TransitionFromPending(ctx, tx.OrderID, model.StatusCancelled, sig, nil)
		if err != nil {
			return OutcomeError, fmt.Errorf("cancel: %w", err)
		}
		if !won {
			return OutcomeDuplicate, nil
		}
		log.Printf("reconcile: order_id=%s cancelled via %s (status=%q code=%q)", tx.OrderID, p.Method(), ev.RawStatus, ev.RawCode)
		return OutcomeCancelled, nil

	default:
		if err := r.Transactions.RecordSignal(ctx, tx.OrderID, sig); err != nil {
			return OutcomeError, fmt.Errorf("record signal: %w", err)
		}
		log.Printf("reconcile: order_id=%s indeterminate status=%q code=%q, left pending", tx.OrderID, ev.RawStatus, ev.RawCode)
		return OutcomeIndeterminate, nil
	}
}

// tokenMatches applies the invoice-token guard.  Token-authenticated
// providers need an exact match with a stored token; for the others a
// token is only compared when both sides have one.
func tokenMatches(p payment.Provider, stored, got string) bool {
	if ta, ok := p.(payment.TokenAuthenticator); ok && ta.AuthenticatesByToken() {
		return stored != "" && stored == got
	}
	return stored == "" || got == "" || stored == got
}

func (r *Reconciler) dispatch(ctx context.Context, tx *model.Transaction) {
	ev := ValidatedEvent(tx)
	if err := r.Dispatcher.Dispatch(ctx, ev); err != nil {
		log.Printf("reconcile: ALERT order_id=%s validated but fulfillment dispatch failed, sweep will re-drive: %v", tx.OrderID, err)
	}
}

// confirm runs the advisory provider check in the background.  A failure
// or disagreement is logged and never reverts the transition.
func (r *Reconciler) confirm(ctx context.Context, p payment.Provider, tx *model.Transaction, ev payment.CallbackEvent) {
	if !r.ConfirmWithProvider {
		return
	}
	c, ok := p.(payment.Confirmer)
	if !ok {
		return
	}
	token := ev.InvoiceToken
	if token == "" {
		token = tx.ProviderInvoiceToken
	}
	if token == "" {
		log.Printf("reconcile: order_id=%s no invoice token, skipping provider confirmation", tx.OrderID)
		return
	}
	timeout := r.ConfirmTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		got, err := c.Confirm(cctx, token)
		switch {
		case err != nil:
			log.Printf("reconcile: ALERT order_id=%s provider confirmation failed, keeping validated: %v", tx.OrderID, err)
		case !got.IsSuccess:
			log.Printf("reconcile: ALERT order_id=%s provider confirmation disagrees (status=%q), keeping validated", tx.OrderID, got.RawStatus)
		default:
			log.Printf("reconcile: order_id=%s confirmed with %s", tx.OrderID, p.Method())
		}
	}()
}

// paidAfterCancel reports money taken for an order that will never be
// fulfilled; it needs a manual refund or re-issue.
func paidAfterCancel(orderID string, method model.PaymentMethod, ev payment.CallbackEvent) {
	log.Printf("reconcile: ALERT order_id=%s paid after cancellation via %s (status=%q token=%q), refund or fulfill manually",
		orderID, method, ev.RawStatus, ev.InvoiceToken)
}

// Wait blocks until background confirmations have finished.
func (r *Reconciler) Wait() { r.wg.Wait() }

// maxReasonLen matches transactions.provider_status.
const maxReasonLen = 64

// CancelPending cancels a transaction that is still pending, for operator
// use.  It goes through the same conditional update as callbacks.
func (r *Reconciler) CancelPending(ctx context.Context, orderID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled_by_operator"
	}
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return fmt.Errorf("%w: reason is longer than %d characters", ErrInvalidRequest, maxReasonLen)
	}
	tx, err := r.Transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if tx.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotPending, orderID, tx.Status)
	}
	won, err := r.Transactions.TransitionFromPending(ctx, orderID, model.StatusCancelled, model.ProviderSignal{Status: reason}, nil)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: %s changed concurrently", ErrNotPending, orderID)
	}
	log.Printf("reconcile: order_id=%s cancelled by operator (%s)", orderID, reason)
	return nil
}

// ValidatedEvent builds the fulfillment message for a validated transaction.
func ValidatedEvent(tx *model.Transaction) queue.PaymentValidatedEvent {
	ev := queue.PaymentValidatedEvent{
		OrderID:       tx.OrderID,
		TransactionID: tx.ID,
		PaymentMethod: string(tx.PaymentMethod),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		UserID:        tx.UserID,
		BookIDs:       tx.BookIDs,
	}
	at := time.Now()
	if tx.PaymentConfirmedAt != nil {
		at = *tx.PaymentConfirmedAt
	}
	ev.Stamp(at)
	return ev
}
