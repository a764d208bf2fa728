package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"mlekara-shop/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewTestUser creates a test user with sensible defaults
// Pass options to override specific fields
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	o := &UserOptions{
		ID:           nextID("user"),
		Username:     fmt.Sprintf("testuser%d", idCounter.Load()),
		PasswordHash: "$2a$10$test.hash.for.testing.purposes.only", // bcrypt hash placeholder
	}

	for _, opt := range opts {
		opt(o)
	}

	// Set email based on username if not provided
	if o.Email == "" {
		o.Email = o.Username + "@example.com"
	}

	// Set created time if not provided
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.User{
		ID:           o.ID,
		Username:     o.Username,
		Email:        o.Email,
		PasswordHash: o.PasswordHash,
		CreatedAt:    o.CreatedAt,
	}
}

// User option functions

// WithUserID sets the user ID
func WithUserID(id string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.ID = id
	}
}

// WithUsername sets the username
func WithUsername(username string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Username = username
	}
}

// WithEmail sets the email
func WithEmail(email string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Email = email
	}
}

// WithPasswordHash sets the password hash
func WithPasswordHash(hash string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.PasswordHash = hash
	}
}

// WithUserCreatedAt sets the user creation time
func WithUserCreatedAt(t time.Time) func(*UserOptions) {
	return func(o *UserOptions) {
		o.CreatedAt = t
	}
}

// SessionOptions allows customizing session fixture creation
type SessionOptions struct {
	ID         string
	UserID     string
	Token      string
	CSRFToken  string
	ExpiresAt  time.Time
	LastSeenAt time.Time
	CreatedAt  time.Time
}

// NewTestSession creates a test session with sensible defaults
func NewTestSession(opts ...func(*SessionOptions)) *domain.Session {
	o := &SessionOptions{
		ID:         nextID("session"),
		UserID:     nextID("user"),
		Token:      nextID("token"),
		CSRFToken:  nextID("csrf"),
		ExpiresAt:  time.Now().Add(24 * time.Hour),
		LastSeenAt: time.Now(),
		CreatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Session{
		ID:         o.ID,
		UserID:     o.UserID,
		Token:      o.Token,
		CSRFToken:  o.CSRFToken,
		ExpiresAt:  o.ExpiresAt,
		LastSeenAt: o.LastSeenAt,
		CreatedAt:  o.CreatedAt,
	}
}

// Session option functions

// WithSessionID sets the session ID
func WithSessionID(id string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ID = id
	}
}

// WithSessionUserID sets the user ID for the session
func WithSessionUserID(userID string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.UserID = userID
	}
}

// WithToken sets the session token
func WithToken(token string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Token = token
	}
}

// WithCSRFToken sets the CSRF token bound to the session
func WithCSRFToken(token string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.CSRFToken = token
	}
}

// WithExpiresAt sets the session expiration time
func WithExpiresAt(t time.Time) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = t
	}
}

// WithExpired creates an expired session
func WithExpired() func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = time.Now().Add(-1 * time.Hour)
	}
}

// WithLastSeenAt sets when the session last showed activity
func WithLastSeenAt(t time.Time) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.LastSeenAt = t
	}
}

// WithSessionCreatedAt sets the session creation time
func WithSessionCreatedAt(t time.Time) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.CreatedAt = t
	}
}

// OrderOptions allows customizing order fixture creation
type OrderOptions struct {
	ID          string
	UserID      string
	Items       string
	AmountCents int64
	Currency    string
	Status      string
	PaymentBlob string
	CreatedAt   time.Time
}

// NewTestOrder creates a test order with sensible defaults
func NewTestOrder(opts ...func(*OrderOptions)) *domain.Order {
	o := &OrderOptions{
		ID:          nextID("order"),
		UserID:      nextID("user"),
		Items:       "mleko,kajmak",
		AmountCents: 1250,
		Currency:    "RSD",
		Status:      domain.OrderStatusPlaced,
		PaymentBlob: "bm9uY2U=:Y2lwaGVydGV4dA==",
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Order{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       o.Items,
		AmountCents: o.AmountCents,
		Currency:    o.Currency,
		Status:      o.Status,
		PaymentBlob: o.PaymentBlob,
		CreatedAt:   o.CreatedAt,
	}
}

// Order option functions

// WithOrderID sets the order ID
func WithOrderID(id string) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.ID = id
	}
}

// WithOrderUserID sets the user ID for the order
func WithOrderUserID(userID string) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.UserID = userID
	}
}

// WithItems sets the order items
func WithItems(items string) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.Items = items
	}
}

// WithAmount sets the order amount and currency
func WithAmount(amountCents int64, currency string) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.AmountCents = amountCents
		o.Currency = currency
	}
}

// WithStatus sets the order status
func WithStatus(status string) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.Status = status
	}
}

// WithPaymentBlob sets the encrypted payment blob
func WithPaymentBlob(blob string) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.PaymentBlob = blob
	}
}

// WithOrderCreatedAt sets the order creation time
func WithOrderCreatedAt(t time.Time) func(*OrderOptions) {
	return func(o *OrderOptions) {
		o.CreatedAt = t
	}
}

// Batch creation helpers

// NewTestUsers creates multiple test users
func NewTestUsers(count int) []*domain.User {
	users := make([]*domain.User, count)
	for i := 0; i < count; i++ {
		users[i] = NewTestUser()
	}
	return users
}

// NewTestOrders creates multiple test orders for the same user
func NewTestOrders(userID string, count int) []*domain.Order {
	orders := make([]*domain.Order, count)
	for i := 0; i < count; i++ {
		orders[i] = NewTestOrder(
			WithOrderUserID(userID),
			WithOrderCreatedAt(time.Now().Add(time.Duration(i)*time.Second)),
		)
	}
	return orders
}

// ResetIDCounter resets the ID counter (useful for deterministic tests)
func ResetIDCounter() {
	idCounter.Store(0)
}
