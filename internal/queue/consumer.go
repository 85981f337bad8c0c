package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/config"
)

// AuditConsumer listens to the stored and compaction queues and appends one
// line per event to an audit log file.
type AuditConsumer struct {
    cfg config.QueueConfig
    log zerolog.Logger
    mu  sync.Mutex // serializes file appends
}

func NewAuditConsumer(cfg config.QueueConfig, log zerolog.Logger) *AuditConsumer {
    return &AuditConsumer{cfg: cfg, log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, reconnecting
// with exponential backoff when the broker goes away.
func (a *AuditConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(a.cfg.URL)
        if err != nil {
            a.log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit consumer: dial failed")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = a.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        a.log.Warn().Err(err).Msg("audit consumer: consume loop ended, reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        a.log.Warn().Err(err).Msg("audit consumer: set QoS failed")
    }

    type source struct {
        queue string
        msgs  <-chan amqp.Delivery
    }
    var sources []source
    for _, q := range []string{a.cfg.StoredQueue, a.cfg.CompactionQueue} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        sources = append(sources, source{q, msgs})
    }

    stored, compacted := sources[0].msgs, sources[1].msgs
    for {
        var (
            d     amqp.Delivery
            ok    bool
            queue string
        )
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-stored:
            queue = a.cfg.StoredQueue
        case d, ok = <-compacted:
            queue = a.cfg.CompactionQueue
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := a.Handle(queue, d.Body); err != nil {
            a.log.Error().Err(err).Str("queue", queue).Msg("audit consumer: handle message failed")
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
}

// Handle formats one event body from queue and appends it to the audit log.
func (a *AuditConsumer) Handle(queue string, body []byte) error {
    line, err := a.format(queue, body)
    if err != nil {
        return err
    }

    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(a.cfg.AuditLogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.cfg.AuditLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func (a *AuditConsumer) format(queue string, body []byte) (string, error) {
    switch queue {
    case a.cfg.StoredQueue:
        var ev ScanResultsStoredEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        uid := ev.UserID
        if uid == "" {
            uid = "-"
        }
        return fmt.Sprintf("[%s] Scan results received | event=%s | client=%q | user=%s | stored=%d | duplicates=%d | discarded=%d | rejected=%d\n",
            ev.ReceivedAt, ev.EventID, ev.ClientID, uid, len(ev.StoredIDs), ev.Duplicates, ev.Discarded, ev.Rejected), nil
    case a.cfg.CompactionQueue:
        var ev CompactionFinishedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Compaction finished | event=%s | processed=%d | moved=%d | groups=%d | max_per_bssid=%d | mean_per_bssid=%.2f | took=%dms | dry_run=%t\n",
            ev.FinishedAt, ev.EventID, ev.Processed, ev.Moved, ev.Groups, ev.MaxPerBSSID, ev.MeanPerBSSID, ev.DurationMS, ev.DryRun), nil
    default:
        return "", fmt.Errorf("unexpected queue %q", queue)
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
