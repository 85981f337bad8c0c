package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/config"
)

// Publisher delivers an event to a named queue.
type Publisher interface {
    Publish(ctx context.Context, queue string, event any) error
}

// Nop drops every event.  It is used when the broker is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// NewPublisher returns an AMQP publisher when cfg enables the broker and Nop
// otherwise.
func NewPublisher(cfg config.QueueConfig, log zerolog.Logger) Publisher {
    if !cfg.Enabled {
        return Nop{}
    }
    return &AMQPPublisher{url: cfg.URL, log: log, declared: map[string]bool{}}
}

// AMQPPublisher publishes persistent JSON messages to durable queues on the
// default exchange.  The connection is opened on first use and reopened after
// any failure; callers treat publish errors as non-fatal.
type AMQPPublisher struct {
    url string
    log zerolog.Logger

    mu       sync.Mutex
    conn     *amqp.Connection
    ch       *amqp.Channel
    declared map[string]bool
}

func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    if err := p.ensureChannel(); err != nil {
        return err
    }
    if !p.declared[queue] {
        if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
            p.resetLocked()
            return fmt.Errorf("queue declare %s: %w", queue, err)
        }
        p.declared[queue] = true
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := p.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        p.resetLocked()
        return fmt.Errorf("publish %s: %w", queue, err)
    }
    return nil
}

func (p *AMQPPublisher) ensureChannel() error {
    if p.ch != nil && !p.ch.IsClosed() {
        return nil
    }
    p.resetLocked()
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return fmt.Errorf("dial broker: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return fmt.Errorf("channel open: %w", err)
    }
    p.conn, p.ch = conn, ch
    p.log.Debug().Msg("rabbitmq publisher connected")
    return nil
}

func (p *AMQPPublisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
    p.declared = map[string]bool{}
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.resetLocked()
}
