package service

import (
	"context"
	"fmt"
	"log"
)

// Sweeper re-dispatches validated transactions that never got a purchase,
// for instance after a dropped queue message or a crash between the
// status update and the publish.
type Sweeper struct {
	Transactions TransactionStore
	Dispatcher   Dispatcher
}

// Sweep dispatches up to limit stranded orders and reports how many were
// handed off.
func (s *Sweeper) Sweep(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	txs, err := s.Transactions.ListValidatedWithoutPurchase(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unfulfilled: %w", err)
	}
	n := 0
	for i := range txs {
		if err := s.Dispatcher.Dispatch(ctx, ValidatedEvent(&txs[i])); err != nil {
			log.Printf("sweep: order_id=%s dispatch failed: %v", txs[i].OrderID, err)
			continue
		}
		n++
	}
	if len(txs) > 0 {
		log.Printf("sweep: re-dispatched %d of %d unfulfilled orders", n, len(txs))
	}
	return n, nil
}
