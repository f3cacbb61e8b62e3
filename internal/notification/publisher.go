package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker publishes notification messages to downstream consumers (mail, push).
type Broker interface {
	Publish(ctx context.Context, msg Message) error
}

// NoopBroker is used when no broker URL is configured.
type NoopBroker struct{}

func (NoopBroker) Publish(context.Context, Message) error { return nil }

// AMQPBroker publishes persistent JSON messages to a durable RabbitMQ queue through
// the default exchange. The connection is opened lazily and re-opened after failures.
type AMQPBroker struct {
	url    string
	queue  string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPBroker(url, queue string, logger *slog.Logger) *AMQPBroker {
	return &AMQPBroker{url: url, queue: queue, logger: logger}
}

func (b *AMQPBroker) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification message: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channelLocked()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         msg.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", b.queue, false, false, pub); err != nil {
		b.resetLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (b *AMQPBroker) channelLocked() (*amqp.Channel, error) {
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}
	b.resetLocked()

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	b.logger.Info("rabbitmq connected", "queue", b.queue)
	b.conn, b.ch = conn, ch
	return ch, nil
}

func (b *AMQPBroker) resetLocked() {
	if b.ch != nil {
		_ = b.ch.Close()
		b.ch = nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// Close releases the broker connection.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	return nil
}
