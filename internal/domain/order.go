package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderExists         = errors.New("order already exists")
	ErrPaymentTokenInvalid = errors.New("payment token invalid or expired")
)

// Order statuses. An order moves placed -> confirmed when the worker has
// processed its payment envelope; duplicate deliveries never move it twice.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusConfirmed = "confirmed"
	OrderStatusRejected  = "rejected"
)

// Order represents a placed dairy-product order. PaymentBlob is the
// AES-encrypted payment payload; plaintext payment data is never persisted.
type Order struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Items       string    `json:"items"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	PaymentBlob string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Order, error)
	ListStalePlaced(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error)
	UpdateStatus(ctx context.Context, id, status string) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) error
}
