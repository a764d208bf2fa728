package service

import (
	"context"
	"log/slog"
	"time"

	"mlekara-shop/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// exportOrderLimit caps how much order history a single export carries.
const exportOrderLimit = 100

// AccountEraser removes every record belonging to a user atomically.
type AccountEraser interface {
	EraseUser(ctx context.Context, userID string) error
}

// ExportedOrder is an order as it appears in a data export. The encrypted
// payment blob stays out of exports.
type ExportedOrder struct {
	ID          string    `json:"id"`
	Items       string    `json:"items"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// DataExport is the full machine-readable copy of a user's data.
type DataExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	UserID      string          `json:"user_id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	JoinedAt    time.Time       `json:"joined_at"`
	Orders      []ExportedOrder `json:"orders"`
}

// PrivacyService serves data-subject requests: export and erasure.
type PrivacyService struct {
	userRepo  domain.UserRepository
	orderRepo domain.OrderRepository
	eraser    AccountEraser
	facade    *SecurityFacade
}

func NewPrivacyService(userRepo domain.UserRepository, orderRepo domain.OrderRepository, eraser AccountEraser, facade *SecurityFacade) *PrivacyService {
	return &PrivacyService{
		userRepo:  userRepo,
		orderRepo: orderRepo,
		eraser:    eraser,
		facade:    facade,
	}
}

// ExportData assembles everything stored about the user. Free-text fields
// pass through the sanitizer so an export cannot carry stored markup back
// into a browser.
func (s *PrivacyService) ExportData(ctx context.Context, userID string) (*DataExport, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID, exportOrderLimit)
	if err != nil {
		return nil, err
	}

	export := &DataExport{
		GeneratedAt: time.Now().UTC(),
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		JoinedAt:    user.CreatedAt,
		Orders:      make([]ExportedOrder, 0, len(orders)),
	}

	for _, order := range orders {
		items := order.Items
		if sanitized, ok := s.facade.Sanitize(items).(string); ok {
			items = sanitized
		}
		export.Orders = append(export.Orders, ExportedOrder{
			ID:          order.ID,
			Items:       items,
			AmountCents: order.AmountCents,
			Currency:    order.Currency,
			Status:      order.Status,
			CreatedAt:   order.CreatedAt,
		})
	}

	slog.Info("data export generated",
		slog.String("user_id", userID),
		slog.Int("orders", len(export.Orders)))

	return export, nil
}

// DeleteAccount erases the user and everything tied to them. Erasure is
// irreversible, so the caller must re-confirm their password; a stolen
// session alone cannot destroy an account.
func (s *PrivacyService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.ErrInvalidCredentials
	}

	if err := s.eraser.EraseUser(ctx, userID); err != nil {
		return err
	}

	slog.Info("account erased", slog.String("user_id", userID))
	return nil
}
