package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/papegu/senegal-livres/internal/queue"
)

// InProcessDispatcher runs fulfillment on a goroutine when no broker is
// configured.  Like the broker consumer it retries once and then leaves
// the order for the sweep.
type InProcessDispatcher struct {
	handle  queue.HandlerFunc
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInProcessDispatcher(h queue.HandlerFunc) *InProcessDispatcher {
	return &InProcessDispatcher{handle: h, timeout: 2 * time.Minute}
}

func (d *InProcessDispatcher) Dispatch(ctx context.Context, ev queue.PaymentValidatedEvent) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		err := d.handle(runCtx, ev)
		if err == nil {
			return
		}
		log.Printf("fulfillment: order_id=%s failed, retrying once: %v", ev.OrderID, err)
		if err := d.handle(runCtx, ev); err != nil {
			log.Printf("fulfillment: ALERT order_id=%s paid but unfulfilled after retry: %v", ev.OrderID, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched fulfillment has returned.
func (d *InProcessDispatcher) Wait() { d.wg.Wait() }
