package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends PaymentValidatedEvent messages to a durable queue.  A
// connection is opened per publish; validations are rare enough that a
// pooled channel is not worth the reconnect bookkeeping.
type Publisher struct {
    URL   string
    Queue string
}

func NewPublisher(url, queue string) *Publisher {
    return &Publisher{URL: url, Queue: queue}
}

// Dispatch publishes ev as a persistent message on the default exchange.
// Errors are logged and returned; the caller decides whether a failed
// publish is fatal.
func (p *Publisher) Dispatch(ctx context.Context, ev PaymentValidatedEvent) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, p.Queue); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.OrderID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: order_id=%s: %v", ev.OrderID, err)
        return err
    }
    return nil
}

// declare makes sure the durable queue exists.  Publisher and consumer
// must agree on its arguments or the broker refuses the second declare.
func declare(ch *amqp.Channel, name string) error {
    _, err := ch.QueueDeclare(
        name,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,
    )
    return err
}
