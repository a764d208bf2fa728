package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/gateway"
	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/security"
)

// PaymentAuthorizer submits a decrypted payment envelope for authorization.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, req *gateway.AuthorizationRequest) (*gateway.AuthorizationResult, error)
}

// ResultPublisher fans the settlement verdict out to notification listeners.
type ResultPublisher interface {
	PublishOrderResult(ctx context.Context, result *OrderResult) error
}

// OrderEventConsumer drains the orders.placed queue: it decrypts each order's
// payment envelope, runs it past the gateway and settles the order row.
// Deliveries are acked manually so a crashed worker leaves the event queued.
type OrderEventConsumer struct {
	rmq        *RabbitMQ
	results    ResultPublisher
	orders     domain.OrderRepository
	codec      *security.Codec
	authorizer PaymentAuthorizer
}

func NewOrderEventConsumer(rmq *RabbitMQ, orders domain.OrderRepository, codec *security.Codec, authorizer PaymentAuthorizer) *OrderEventConsumer {
	return &OrderEventConsumer{
		rmq:        rmq,
		results:    rmq,
		orders:     orders,
		codec:      codec,
		authorizer: authorizer,
	}
}

func (c *OrderEventConsumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.ConsumeOrderEvents()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping order event consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("order event channel closed")
					return
				}

				var event OrderEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					slog.Error("error unmarshaling order event",
						slog.String("error", err.Error()),
						slog.String("body", string(msg.Body)))
					// Poison message, requeueing would loop forever
					msg.Ack(false)
					observability.OrderEventsConsumed.WithLabelValues("invalid").Inc()
					continue
				}

				outcome, err := c.processEvent(ctx, &event)
				if err != nil {
					slog.Error("error processing order event",
						slog.String("order_id", event.OrderID),
						slog.String("error", err.Error()))
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
				observability.OrderEventsConsumed.WithLabelValues(outcome).Inc()
			}
		}
	}()

	return nil
}

// processEvent returns the metric outcome for the delivery. An error return
// means the event should be redelivered.
func (c *OrderEventConsumer) processEvent(ctx context.Context, event *OrderEvent) (string, error) {
	payment, err := c.codec.Decrypt(event.PaymentBlob)
	if err != nil {
		// A blob that will not decrypt was tampered with or encrypted under
		// another key. Retrying cannot fix it.
		slog.Error("failed to decrypt payment envelope",
			slog.String("order_id", event.OrderID),
			slog.String("error", err.Error()))
		return c.settleOrder(ctx, event, domain.OrderStatusRejected, "payment data unreadable")
	}

	result, err := c.authorizer.Authorize(ctx, &gateway.AuthorizationRequest{
		OrderID:     event.OrderID,
		AmountCents: event.AmountCents,
		Currency:    event.Currency,
		Payment:     payment,
	})
	if err != nil {
		return "error", fmt.Errorf("failed to authorize order %s: %w", event.OrderID, err)
	}

	if result.Approved {
		return c.settleOrder(ctx, event, domain.OrderStatusConfirmed, "")
	}
	return c.settleOrder(ctx, event, domain.OrderStatusRejected, result.Reason)
}

func (c *OrderEventConsumer) settleOrder(ctx context.Context, event *OrderEvent, status, reason string) (string, error) {
	updated, err := c.orders.UpdateStatus(ctx, event.OrderID, status)
	if err != nil {
		return "error", fmt.Errorf("failed to update order %s: %w", event.OrderID, err)
	}
	if !updated {
		// Redelivery of an order that already settled
		slog.Info("order already settled, skipping",
			slog.String("order_id", event.OrderID))
		return "duplicate", nil
	}

	if err := c.results.PublishOrderResult(ctx, &OrderResult{
		OrderID: event.OrderID,
		UserID:  event.UserID,
		Status:  status,
		Reason:  reason,
	}); err != nil {
		// The order row is settled; the notification is best effort
		slog.Error("failed to publish order result",
			slog.String("order_id", event.OrderID),
			slog.String("error", err.Error()))
	}

	slog.Info("order settled",
		slog.String("order_id", event.OrderID),
		slog.String("status", status))
	return status, nil
}
