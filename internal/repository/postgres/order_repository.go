package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/observability"
)

// OrderRepository implements domain.OrderRepository for PostgreSQL. The
// payment_blob column only ever holds the AES-encrypted payload produced at
// checkout; nothing in this layer can decrypt it.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new PostgreSQL order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. Returns domain.ErrOrderExists when the order ID
// was already used: the worker's idempotency anchor.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, items, amount_cents, currency, status, payment_blob)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	start := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.Items,
		order.AmountCents,
		order.Currency,
		order.Status,
		order.PaymentBlob,
	).Scan(&order.CreatedAt)
	observability.DBQueryDuration.WithLabelValues("insert", "orders").Observe(time.Since(start).Seconds())

	if err != nil {
		if IsUniqueViolation(err, "orders_pkey") {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, items, amount_cents, currency, status, payment_blob, created_at
		FROM orders
		WHERE id = $1
	`
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.Items,
		&order.AmountCents,
		&order.Currency,
		&order.Status,
		&order.PaymentBlob,
		&order.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListByUser returns a user's most recent orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, user_id, items, amount_cents, currency, status, payment_blob, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Items,
			&order.AmountCents,
			&order.Currency,
			&order.Status,
			&order.PaymentBlob,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ListStalePlaced returns placed orders older than the cutoff, oldest first.
// The worker polls this to catch orders whose broker event was lost.
func (r *OrderRepository) ListStalePlaced(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, user_id, items, amount_cents, currency, status, payment_blob, created_at
		FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, domain.OrderStatusPlaced, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Items,
			&order.AmountCents,
			&order.Currency,
			&order.Status,
			&order.PaymentBlob,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order from placed to a terminal status. Reports
// whether a row actually changed, so redelivered events become no-ops.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = $3
	`, status, id, domain.OrderStatusPlaced)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteByUserID removes a user's orders. Used by the privacy delete flow.
func (r *OrderRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete orders for user: %w", err)
	}
	return nil
}
