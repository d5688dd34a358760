// Package queue_publisher publishes domain events to RabbitMQ.  Publishing
// happens after the allocation has committed; failures are logged and
// returned so the caller can decide to ignore them.
package queue_publisher

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/admission-seat-allocation/internal/allocation"
    "github.com/iliyamo/admission-seat-allocation/internal/model"
    q "github.com/iliyamo/admission-seat-allocation/internal/queue"
)

// Publisher sends AllocationCompletedEvent messages to the durable
// allocation.completed queue.  It dials per publish; allocations are rare
// enough that a pooled connection is not worth its reconnect handling.
type Publisher struct {
    url     string
    timeout time.Duration
    log     *zap.Logger
}

var _ allocation.EventPublisher = (*Publisher)(nil)

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{url: url, timeout: 5 * time.Second, log: log}
}

// AllocationCompleted publishes the event for a committed allocation.
// Messages are persistent.
func (p *Publisher) AllocationCompleted(ctx context.Context, rec *model.AllocationRecord, concessions []model.ConcessionRecord) error {
    ev := q.NewAllocationCompletedEvent(rec, concessions)
    pub, err := encode(ev)
    if err != nil {
        return err
    }

    ctx, cancel := context.WithTimeout(ctx, p.timeout)
    defer cancel()

    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.Warn("rabbitmq: dial failed", zap.Error(err))
        return fmt.Errorf("dial broker: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("open channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        q.AllocationQueueName, // name
        true,                  // durable
        false,                 // autoDelete
        false,                 // exclusive
        false,                 // noWait
        nil,                   // args
    ); err != nil {
        return fmt.Errorf("declare %s: %w", q.AllocationQueueName, err)
    }

    if err := ch.PublishWithContext(ctx,
        "",                    // default exchange
        q.AllocationQueueName, // routing key = queue name
        false,                 // mandatory
        false,                 // immediate
        pub,
    ); err != nil {
        return fmt.Errorf("publish %s: %w", ev.EventID, err)
    }
    p.log.Debug("allocation event published",
        zap.String("event_id", ev.EventID),
        zap.String("enrollment_id", ev.EnrollmentID))
    return nil
}

func encode(ev q.AllocationCompletedEvent) (amqp.Publishing, error) {
    body, err := json.Marshal(ev)
    if err != nil {
        return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
    }
    return amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.EventID,
        Type:         q.AllocationQueueName,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }, nil
}
