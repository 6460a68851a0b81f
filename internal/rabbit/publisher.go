package rabbit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Publisher announces catalog mutations on the book_events exchange.
// Messages are persistent so they survive a broker restart. The publisher
// owns its connection: open it at startup with Connect, close it at
// shutdown with Close.
type Publisher struct {
	url    string
	logger *slog.Logger
	tracer trace.Tracer

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a publisher for the given AMQP URL. No connection
// is made until Connect or the first Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{
		url:    url,
		logger: slog.Default().With("component", "rabbit.publisher"),
		tracer: otel.Tracer("libria/rabbit"),
	}
}

// Connect dials the broker and declares the topic exchange. It is
// idempotent: calling it while the connection is open is a no-op, and a
// closed connection is re-established.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	if p.conn != nil && !p.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("connected to rabbitmq", "exchange", Exchange)
	return nil
}

// Publish sends a persistent BookEvent routed by "book.<action>".
// Call it only after the originating database write has committed. If the
// connection is down, one reconnect is attempted; if that fails the error
// is returned to the caller. The caller's write has already succeeded, so
// a publish failure must not be treated as a write failure.
func (p *Publisher) Publish(ctx context.Context, bookID uuid.UUID, action string) error {
	event := BookEvent{BookID: bookID, Action: action}

	ctx, span := p.tracer.Start(ctx, "rabbit.publish",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("book.action", action),
		),
	)
	defer span.End()

	body, err := event.encode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return fmt.Errorf("publish %s: %w", event.RoutingKey(), err)
	}

	err = p.ch.PublishWithContext(ctx,
		Exchange,
		event.RoutingKey(),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.RoutingKey(), err)
	}

	p.logger.Debug("published book event", "routing_key", event.RoutingKey(), "book_id", bookID)
	return nil
}

// Close releases the channel and connection. Safe to call multiple times.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			lastErr = err
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			lastErr = err
		}
		p.conn = nil
	}
	return lastErr
}
