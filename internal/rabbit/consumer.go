package rabbit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const prefetchCount = 10

// Handler processes one decoded book event. A nil return acknowledges the
// message; an error rejects it without requeue.
type Handler func(ctx context.Context, event BookEvent) error

// acker is the slice of amqp.Delivery the consumer needs to settle a
// message. Split out so per-message handling is testable without a broker.
type acker interface {
	Ack(multiple bool) error
	Reject(requeue bool) error
}

// Consumer receives book events from a durable named queue bound to the
// book_events exchange with the "book.*" pattern. Delivery is
// at-least-once: duplicates and reordering after redelivery are the
// handler's problem, which is why the circulation projection is
// idempotent.
type Consumer struct {
	url     string
	queue   string
	logger  *slog.Logger
	tracer  trace.Tracer
	handler Handler

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewConsumer creates a consumer for the given AMQP URL and queue name.
func NewConsumer(url, queue string) *Consumer {
	return &Consumer{
		url:    url,
		queue:  queue,
		logger: slog.Default().With("component", "rabbit.consumer", "queue", queue),
		tracer: otel.Tracer("libria/rabbit"),
	}
}

// SetHandler registers the callback invoked per message. Exactly one
// handler is active at a time; call before Consume.
func (c *Consumer) SetHandler(h Handler) {
	c.handler = h
}

// Consume connects, declares the exchange and queue, binds them, and
// processes deliveries until ctx is cancelled or the broker closes the
// stream. The connection is closed on the way out; a message whose
// handler is in flight is settled before Consume returns.
func (c *Consumer) Consume(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("rabbit: no handler registered")
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer c.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	// Same declaration as the publisher; whichever side starts first
	// creates the exchange.
	err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	q, err := ch.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // auto-delete
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	if err := ch.QueueBind(q.Name, BindingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("consume from %s: %w", q.Name, err)
	}

	c.logger.Info("consumer started", "exchange", Exchange, "binding", BindingKey)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbit: delivery channel closed")
			}
			c.process(ctx, delivery.Body, delivery.RoutingKey, delivery)
		}
	}
}

// process settles exactly one delivery: ack after a successful handler
// run, reject without requeue otherwise. Dropping instead of requeueing
// is deliberate; there is no dead-letter exchange, so a poison message
// is logged and lost rather than redelivered forever.
func (c *Consumer) process(ctx context.Context, body []byte, routingKey string, d acker) {
	ctx, span := c.tracer.Start(ctx, "rabbit.consume",
		trace.WithAttributes(attribute.String("routing_key", routingKey)),
	)
	defer span.End()

	event, err := decodeBookEvent(body)
	if err != nil {
		c.logger.Error("dropping undecodable message",
			"routing_key", routingKey, "body_size", len(body), "error", err)
		if err := d.Reject(false); err != nil {
			c.logger.Error("reject failed", "error", err)
		}
		return
	}

	span.SetAttributes(
		attribute.String("book.id", event.BookID.String()),
		attribute.String("book.action", event.Action),
	)

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error("dropping unprocessable message",
			"routing_key", routingKey, "book_id", event.BookID, "error", err)
		if err := d.Reject(false); err != nil {
			c.logger.Error("reject failed", "error", err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", "book_id", event.BookID, "error", err)
	}
}

// Close closes the broker connection. Safe to call multiple times.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
