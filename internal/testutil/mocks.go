// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the mlekara-shop application.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/messaging"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockNotFound       = errors.New("mock: not found")
)

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc        func(ctx context.Context, user *domain.User) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*domain.User, error)
	DeleteFunc        func(ctx context.Context, id string) error

	// In-memory storage for simple tests
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[string]*domain.User)
	}

	// Check for duplicates
	for _, u := range m.Users {
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.Users, id)
	return nil
}

// MockSessionRepository implements domain.SessionRepository for testing
type MockSessionRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc          func(ctx context.Context, session *domain.Session) error
	GetByTokenFunc      func(ctx context.Context, token string) (*domain.Session, error)
	UpdateCSRFTokenFunc func(ctx context.Context, csrfToken, sessionToken string) error
	TouchLastSeenFunc   func(ctx context.Context, token string, at time.Time) error
	DeleteFunc          func(ctx context.Context, token string) error
	DeleteByUserIDFunc  func(ctx context.Context, userID string) error
	DeleteExpiredFunc   func(ctx context.Context) (int64, error)

	// In-memory storage
	Sessions map[string]*domain.Session
}

// NewMockSessionRepository creates a new MockSessionRepository with initialized maps
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[string]*domain.Session),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Sessions == nil {
		m.Sessions = make(map[string]*domain.Session)
	}
	m.Sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.Sessions[token]; ok {
		if session.ExpiresAt.Before(time.Now()) {
			return nil, domain.ErrSessionExpired
		}
		return session, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) UpdateCSRFToken(ctx context.Context, csrfToken, sessionToken string) error {
	if m.UpdateCSRFTokenFunc != nil {
		return m.UpdateCSRFTokenFunc(ctx, csrfToken, sessionToken)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.Sessions[sessionToken]; ok {
		session.CSRFToken = csrfToken
		return nil
	}
	return domain.ErrSessionNotFound
}

func (m *MockSessionRepository) TouchLastSeen(ctx context.Context, token string, at time.Time) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, token, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.Sessions[token]; ok {
		session.LastSeenAt = at
	}
	return nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, session := range m.Sessions {
		if session.UserID == userID {
			delete(m.Sessions, token)
		}
	}
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := time.Now()
	for token, session := range m.Sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.Sessions, token)
			count++
		}
	}
	return count, nil
}

// MockOrderRepository implements domain.OrderRepository for testing
type MockOrderRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc          func(ctx context.Context, order *domain.Order) error
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Order, error)
	ListByUserFunc      func(ctx context.Context, userID string, limit int) ([]*domain.Order, error)
	ListStalePlacedFunc func(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)
	UpdateStatusFunc    func(ctx context.Context, id, status string) (bool, error)
	DeleteByUserIDFunc  func(ctx context.Context, userID string) error

	// In-memory storage
	Orders map[string]*domain.Order
}

// NewMockOrderRepository creates a new MockOrderRepository with initialized maps
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		Orders: make(map[string]*domain.Order),
	}
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Orders == nil {
		m.Orders = make(map[string]*domain.Order)
	}
	if _, exists := m.Orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	m.Orders[order.ID] = order
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if order, ok := m.Orders[id]; ok {
		return order, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, order := range m.Orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockOrderRepository) ListStalePlaced(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	if m.ListStalePlacedFunc != nil {
		return m.ListStalePlacedFunc(ctx, olderThan, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, order := range m.Orders {
		if order.Status == domain.OrderStatusPlaced && order.CreatedAt.Before(olderThan) {
			result = append(result, order)
		}
	}
	return result, nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id, status string) (bool, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.Orders[id]
	if !ok || order.Status != domain.OrderStatusPlaced {
		return false, nil
	}
	order.Status = status
	return true, nil
}

func (m *MockOrderRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, order := range m.Orders {
		if order.UserID == userID {
			delete(m.Orders, id)
		}
	}
	return nil
}

// MockOrderPublisher implements service.OrderPublisher for testing
type MockOrderPublisher struct {
	mu sync.RWMutex

	// Function overrides
	PublishOrderPlacedFunc func(ctx context.Context, event *messaging.OrderEvent) error

	// Call tracking
	Events []*messaging.OrderEvent
}

// NewMockOrderPublisher creates a new MockOrderPublisher
func NewMockOrderPublisher() *MockOrderPublisher {
	return &MockOrderPublisher{
		Events: make([]*messaging.OrderEvent, 0),
	}
}

func (m *MockOrderPublisher) PublishOrderPlaced(ctx context.Context, event *messaging.OrderEvent) error {
	if m.PublishOrderPlacedFunc != nil {
		return m.PublishOrderPlacedFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, event)
	return nil
}

// GetPublishedEvents returns all recorded order events
func (m *MockOrderPublisher) GetPublishedEvents() []*messaging.OrderEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*messaging.OrderEvent{}, m.Events...)
}

// Reset clears all recorded events
func (m *MockOrderPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = make([]*messaging.OrderEvent, 0)
}
