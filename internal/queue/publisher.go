package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends PreferencesUpdatedEvent messages to a durable queue.
// Every publish dials its own connection; errors are logged and returned
// so the caller can choose to ignore them.
type Publisher struct {
	url    string
	queue  string
	logger *slog.Logger
}

// NewPublisher returns a publisher for queue on the broker at url.
func NewPublisher(url, queue string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{url: url, queue: queue, logger: logger}
}

// PublishPreferencesUpdated marshals ev and publishes it as a persistent
// message on the default exchange.
func (p *Publisher) PublishPreferencesUpdated(ctx context.Context, ev PreferencesUpdatedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq: dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := declareQueue(ch, p.queue); err != nil {
		p.logger.Warn("rabbitmq: queue declare failed", "queue", p.queue, "error", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("rabbitmq: marshal event failed", "error", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.logger.Warn("rabbitmq: publish failed", "queue", p.queue, "error", err)
		return err
	}
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}
