package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer appends one line per allocation event to <Dir>/allocation.log.
type Consumer struct {
    URL string
    Dir string
    Log *zap.Logger
}

// Run connects to RabbitMQ, declares the allocation.completed queue
// (durable) and consumes until ctx is cancelled, reconnecting with
// exponential backoff.  Messages that cannot be handled are rejected
// without requeue so one bad payload cannot block the queue.
func (c *Consumer) Run(ctx context.Context) error {
    log := c.Log
    if log == nil {
        log = zap.NewNop()
    }
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warn("allocation-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warn("allocation-consumer: consume loop ended; reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
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

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warn("allocation-consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(AllocationQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.ConsumeWithContext(ctx, AllocationQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := c.handle(d.Body); err != nil {
            log.Error("allocation-consumer: handle message failed", zap.Error(err))
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(body []byte) error {
    var ev AllocationCompletedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.EventID == "" || ev.EnrollmentID == "" {
        return errors.New("event without id or enrollment id")
    }
    dir := c.Dir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "allocation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatLine(ev AllocationCompletedEvent) string {
    conc := make([]string, 0, len(ev.Concessions))
    for _, l := range ev.Concessions {
        conc = append(conc, fmt.Sprintf("%s#%d=%s%%", l.Source, l.SubID, l.Percentage))
    }
    return fmt.Sprintf("[%s] Seat allocated | event_id=%s | applicant_id=%d | branch_id=%d | enrollment_id=%s | sub_category=%d | batch=%s | concession=%s%% [%s] | payable=%s\n",
        ev.AllocatedAt, ev.EventID, ev.ApplicantID, ev.BranchID, ev.EnrollmentID, ev.SeatSubcategory,
        ev.ConcessionBatchID, ev.TotalConcessionPct, strings.Join(conc, ","), ev.PayableFee)
}
