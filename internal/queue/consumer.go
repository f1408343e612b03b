package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one validated payment.  A non-nil error asks for
// redelivery.
type HandlerFunc func(ctx context.Context, ev PaymentValidatedEvent) error

// Consumer runs the fulfillment worker against RabbitMQ.
type Consumer struct {
    URL      string
    Queue    string
    Prefetch int
    Handle   HandlerFunc
}

func NewConsumer(url, queue string, h HandlerFunc) *Consumer {
    return &Consumer{URL: url, Queue: queue, Prefetch: 20, Handle: h}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Printf("fulfillment-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("fulfillment-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.Prefetch, 0, false); err != nil {
        log.Printf("fulfillment-consumer: set QoS failed: %v", err)
    }
    if err := declare(ch, c.Queue); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            switch c.process(ctx, d.Body, d.Redelivered) {
            case ack:
                _ = d.Ack(false)
            case requeue:
                _ = d.Nack(false, true)
            case drop:
                _ = d.Nack(false, false)
            }
        }
    }
}

type verdict int

const (
    ack verdict = iota
    requeue
    drop
)

// process decides the fate of one delivery.  A failed fulfillment is
// retried once through the broker; on the second failure the message is
// dropped and the order is left for the sweep command.
func (c *Consumer) process(ctx context.Context, body []byte, redelivered bool) verdict {
    var ev PaymentValidatedEvent
    if err := json.Unmarshal(body, &ev); err != nil || ev.OrderID == "" {
        log.Printf("fulfillment-consumer: ALERT malformed message dropped: %q", body)
        return drop
    }
    if err := c.Handle(ctx, ev); err != nil {
        if !redelivered {
            log.Printf("fulfillment-consumer: order_id=%s failed, requeueing: %v", ev.OrderID, err)
            return requeue
        }
        log.Printf("fulfillment-consumer: ALERT order_id=%s paid but unfulfilled after retry: %v", ev.OrderID, err)
        return drop
    }
    return ack
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
