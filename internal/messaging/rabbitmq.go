package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OrdersExchange        = "shop.orders"
	NotificationsExchange = "shop.notifications"
	OrdersPlacedQueue     = "orders.placed"
	OrderPlacedKey        = "order.placed"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// OrderEvent is published when checkout accepts an order. PaymentBlob is the
// encrypted payment envelope; the broker never sees plaintext payment data.
type OrderEvent struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	PaymentBlob string `json:"payment_blob"`
	Timestamp   int64  `json:"timestamp"`
}

// OrderResult reports the worker's verdict back to interested listeners.
type OrderResult struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials the broker with exponential backoff until ctx
// expires. Brokers often come up after the app in containerized deploys.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	backoff := time.Second
	for {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not ready, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to RabbitMQ: %w", err)
		case <-time.After(backoff):
		}

		if backoff < 16*time.Second {
			backoff *= 2
		}
	}
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		OrdersExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare orders exchange: %w", err)
	}

	if err := r.channel.ExchangeDeclare(
		NotificationsExchange, // name
		"fanout",              // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare notifications exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		OrdersPlacedQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return fmt.Errorf("failed to declare orders.placed queue: %w", err)
	}

	if err := r.channel.QueueBind(
		OrdersPlacedQueue, // queue name
		OrderPlacedKey,    // routing key
		OrdersExchange,    // exchange
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind orders.placed queue: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

func (r *RabbitMQ) PublishOrderPlaced(ctx context.Context, event *OrderEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		OrdersExchange,
		OrderPlacedKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	slog.Info("published order placed event",
		slog.String("order_id", event.OrderID),
		slog.String("currency", event.Currency))
	return nil
}

func (r *RabbitMQ) PublishOrderResult(ctx context.Context, result *OrderResult) error {
	if result.Timestamp == 0 {
		result.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal order result: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		NotificationsExchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish order result: %w", err)
	}

	slog.Info("published order result",
		slog.String("order_id", result.OrderID),
		slog.String("status", result.Status))
	return nil
}

func (r *RabbitMQ) ConsumeOrderEvents() (<-chan amqp.Delivery, error) {
	msgs, err := r.channel.Consume(
		OrdersPlacedQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming order events",
		slog.String("queue", OrdersPlacedQueue))
	return msgs, nil
}

// ConsumeOrderResults binds an ephemeral queue to the notifications fanout.
// Each caller gets its own copy of every result; deliveries are auto-acked
// because a missed notification is not worth a redelivery.
func (r *RabbitMQ) ConsumeOrderResults() (<-chan amqp.Delivery, error) {
	queue, err := r.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare notifications queue: %w", err)
	}

	if err := r.channel.QueueBind(
		queue.Name,
		"",
		NotificationsExchange,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to bind notifications queue: %w", err)
	}

	msgs, err := r.channel.Consume(
		queue.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register notifications consumer: %w", err)
	}

	slog.Info("started consuming order results",
		slog.String("queue", queue.Name))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
