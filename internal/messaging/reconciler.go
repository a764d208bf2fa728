package messaging

import (
	"context"
	"log/slog"
	"time"

	"mlekara-shop/internal/domain"
)

const reconcileBatchSize = 50

// EventPublisher is the slice of the broker the reconciler needs.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *OrderEvent) error
}

// Reconciler re-announces orders stuck in placed. Checkout tolerates a failed
// publish, so a periodic sweep republishes anything that has sat unprocessed
// longer than staleAfter. The consumer's settled-order check makes a
// re-announcement of an already-processed order harmless.
type Reconciler struct {
	events     EventPublisher
	orders     domain.OrderRepository
	interval   time.Duration
	staleAfter time.Duration
}

func NewReconciler(events EventPublisher, orders domain.OrderRepository, interval, staleAfter time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Reconciler{
		events:     events,
		orders:     orders,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping order reconciler")
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

func (r *Reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAfter)
	stale, err := r.orders.ListStalePlaced(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		slog.Error("failed to list stale orders",
			slog.String("error", err.Error()))
		return
	}
	if len(stale) == 0 {
		return
	}

	slog.Info("republishing stale orders",
		slog.Int("count", len(stale)))

	for _, order := range stale {
		event := &OrderEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			AmountCents: order.AmountCents,
			Currency:    order.Currency,
			PaymentBlob: order.PaymentBlob,
			Timestamp:   time.Now().Unix(),
		}
		if err := r.events.PublishOrderPlaced(ctx, event); err != nil {
			// The next sweep will retry
			slog.Error("failed to republish stale order",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()))
			continue
		}
		slog.Info("republished stale order",
			slog.String("order_id", order.ID))
	}
}
