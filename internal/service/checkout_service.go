package service

import (
	"context"
	"log/slog"
	"time"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/messaging"
	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/security"

	"github.com/google/uuid"
)

// OrderPublisher is the slice of the broker the checkout pipeline needs.
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *messaging.OrderEvent) error
}

var supportedCurrencies = map[string]struct{}{
	"RSD": {},
	"EUR": {},
}

// CheckoutRequest carries a validated payment token and the raw payment
// details. The details never leave this service unencrypted.
type CheckoutRequest struct {
	Items       string
	AmountCents int64
	Currency    string
	Token       security.PaymentToken
	Payment     map[string]any
}

type CheckoutService struct {
	orderRepo domain.OrderRepository
	codec     *security.Codec
	tokenizer *security.PaymentTokenizer
	publisher OrderPublisher
}

func NewCheckoutService(orderRepo domain.OrderRepository, codec *security.Codec, tokenizer *security.PaymentTokenizer, publisher OrderPublisher) *CheckoutService {
	return &CheckoutService{
		orderRepo: orderRepo,
		codec:     codec,
		tokenizer: tokenizer,
		publisher: publisher,
	}
}

// MintPaymentToken issues a short-lived token the client must echo back at
// checkout. The token proves the checkout started while authenticated.
func (s *CheckoutService) MintPaymentToken(userID string) security.PaymentToken {
	token := s.tokenizer.Mint(userID, time.Now())
	observability.PaymentTokensMinted.Inc()
	return token
}

// PlaceOrder validates the payment token, encrypts the payment details and
// records the order before announcing it on the broker. The plaintext
// payment map is gone once this returns.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID string, req *CheckoutRequest) (*domain.Order, error) {
	if req.Items == "" || req.AmountCents <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if _, ok := supportedCurrencies[req.Currency]; !ok {
		return nil, domain.ErrInvalidInput
	}

	if !s.tokenizer.Validate(req.Token.Value, userID, req.Token.IssuedAt, req.Token.ExpiresAt, time.Now()) {
		observability.PaymentTokensRejected.Inc()
		slog.Warn("rejected checkout with invalid payment token",
			slog.String("user_id", userID))
		return nil, domain.ErrPaymentTokenInvalid
	}

	blob, err := s.codec.Encrypt(req.Payment)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Items:       req.Items,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Status:      domain.OrderStatusPlaced,
		PaymentBlob: blob,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	event := &messaging.OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		AmountCents: order.AmountCents,
		Currency:    order.Currency,
		PaymentBlob: order.PaymentBlob,
		Timestamp:   time.Now().Unix(),
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		// The order row exists with status placed; the periodic
		// reconciler in the worker will pick it up.
		slog.Error("failed to publish order event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()))
	}

	observability.OrdersPlaced.WithLabelValues(order.Currency).Inc()
	slog.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int64("amount_cents", order.AmountCents))

	return order, nil
}

// GetOrder returns an order only to its owner.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID, limit)
}
