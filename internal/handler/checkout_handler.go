package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/middleware"
	"mlekara-shop/internal/security"
	"mlekara-shop/internal/service"

	"github.com/go-chi/chi/v5"
)

// CheckoutHandler handles payment token and order endpoints
type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

// PlaceOrderRequest represents a checkout request. PaymentToken must be a
// token minted for the same user via MintPaymentToken and still unexpired.
type PlaceOrderRequest struct {
	Items        string                `json:"items"`
	AmountCents  int64                 `json:"amount_cents"`
	Currency     string                `json:"currency"`
	PaymentToken security.PaymentToken `json:"payment_token"`
	Payment      map[string]any        `json:"payment"`
}

// OrderResponse represents an order in API responses. The encrypted payment
// blob is never exposed.
type OrderResponse struct {
	ID          string `json:"id"`
	Items       string `json:"items"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	return OrderResponse{
		ID:          order.ID,
		Items:       order.Items,
		AmountCents: order.AmountCents,
		Currency:    order.Currency,
		Status:      order.Status,
		CreatedAt:   order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// MintPaymentToken issues a short-lived payment token for the authenticated
// user. The client echoes it back in PlaceOrder.
func (h *CheckoutHandler) MintPaymentToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	token := h.checkoutService.MintPaymentToken(userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(token)
}

// PlaceOrder runs the checkout pipeline for the authenticated user
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	order, err := h.checkoutService.PlaceOrder(r.Context(), userID, &service.CheckoutRequest{
		Items:       req.Items,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Token:       req.PaymentToken,
		Payment:     req.Payment,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, `{"error":"Invalid input"}`, http.StatusBadRequest)
		case errors.Is(err, domain.ErrPaymentTokenInvalid):
			http.Error(w, `{"error":"Payment token invalid or expired"}`, http.StatusForbidden)
		case errors.Is(err, domain.ErrOrderExists):
			http.Error(w, `{"error":"Order already placed"}`, http.StatusConflict)
		default:
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toOrderResponse(order))
}

// GetOrder retrieves a single order owned by the authenticated user
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		http.Error(w, `{"error":"Order ID required"}`, http.StatusBadRequest)
		return
	}

	order, err := h.checkoutService.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, `{"error":"Order not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(order))
}

// ListOrders retrieves the authenticated user's order history
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}

	orders, err := h.checkoutService.ListOrders(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve orders"}`, http.StatusInternalServerError)
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"orders": resp,
	})
}
