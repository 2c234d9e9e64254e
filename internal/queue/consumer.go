package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLogFile is the file the consumer appends to inside its directory.
const AuditLogFile = "preferences.log"

// AuditConsumer listens on the preferences.updated queue and appends one
// line per event to <dir>/preferences.log.
type AuditConsumer struct {
	url    string
	queue  string
	dir    string
	logger *slog.Logger
}

func NewAuditConsumer(url, queue, dir string, logger *slog.Logger) *AuditConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditConsumer{url: url, queue: queue, dir: dir, logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled. Dial
// failures back off exponentially up to 30s; a closed delivery channel
// triggers a reconnect. Bad messages are rejected without requeue.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("audit-consumer: failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("audit-consumer: consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("audit-consumer: set QoS failed", "error", err)
	}
	if _, err := declareQueue(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
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
			if err := c.HandleMessage(d.Body); err != nil {
				c.logger.Warn("audit-consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends its audit line.
func (c *AuditConsumer) HandleMessage(body []byte) error {
	var ev PreferencesUpdatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.UserID == "" {
		return errors.New("event without user_id")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev PreferencesUpdatedEvent) string {
	return fmt.Sprintf("[%s] Preferences updated | event_id=%s | user_id=%s | fields=[%s] | view_type=%q\n",
		ev.UpdatedAt, ev.EventID, ev.UserID, strings.Join(ev.ChangedFields, ","), ev.ViewType)
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
