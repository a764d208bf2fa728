//go:build e2e
// +build e2e

// This file contains checkout flow tests: payment token minting, order
// placement and the order listing endpoints.
package e2e

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlekara-shop/internal/domain"
)

const testItems = `[{"sku":"kajmak-250g","quantity":2},{"sku":"jogurt-1l","quantity":4}]`

// TestCheckout_PaymentToken covers minting and the token's advertised window
func TestCheckout_PaymentToken(t *testing.T) {
	client := setupTestUser(t, "mint")

	t.Run("mint returns a bounded token", func(t *testing.T) {
		token, err := client.MintPaymentToken()
		require.NoError(t, err)

		assert.NotEmpty(t, token.Value)
		assert.True(t, token.ExpiresAt.After(token.IssuedAt), "token must expire after issuance")
		assert.WithinDuration(t, token.IssuedAt.Add(15*time.Minute), token.ExpiresAt, 2*time.Second)
	})

	t.Run("mint requires authentication", func(t *testing.T) {
		anon := NewTestClient(t)
		resp, err := anon.PostJSON("/api/v1/checkout/payment-token", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

// TestCheckout_PlaceOrder covers the happy path and token validation
func TestCheckout_PlaceOrder(t *testing.T) {
	client := setupTestUser(t, "checkout")

	t.Run("valid order is accepted and settles", func(t *testing.T) {
		token, err := client.MintPaymentToken()
		require.NoError(t, err)

		order, err := client.PlaceOrder(token, testItems, 2490, "RSD")
		require.NoError(t, err)

		assert.NotEmpty(t, order.ID)
		assert.Equal(t, testItems, order.Items)
		assert.Equal(t, int64(2490), order.AmountCents)
		assert.Equal(t, "RSD", order.Currency)
		assert.Equal(t, domain.OrderStatusPlaced, order.Status)

		// The in-process worker should confirm it shortly
		settled, err := client.WaitForOrderStatus(order.ID, domain.OrderStatusConfirmed, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusConfirmed, settled.Status)
	})

	t.Run("over-limit order is rejected by the gateway", func(t *testing.T) {
		token, err := client.MintPaymentToken()
		require.NoError(t, err)

		order, err := client.PlaceOrder(token, testItems, 250000, "RSD")
		require.NoError(t, err)

		settled, err := client.WaitForOrderStatus(order.ID, domain.OrderStatusRejected, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusRejected, settled.Status)
	})

	t.Run("forged payment token is refused", func(t *testing.T) {
		token, err := client.MintPaymentToken()
		require.NoError(t, err)
		token.Value = token.Value + "tampered"

		_, err = client.PlaceOrder(token, testItems, 2490, "RSD")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("expired payment token is refused", func(t *testing.T) {
		token, err := client.MintPaymentToken()
		require.NoError(t, err)
		token.ExpiresAt = token.ExpiresAt.Add(-time.Hour)

		_, err = client.PlaceOrder(token, testItems, 2490, "RSD")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("checkout requires a CSRF token", func(t *testing.T) {
		token, err := client.MintPaymentToken()
		require.NoError(t, err)

		savedCSRF := client.csrfToken
		client.csrfToken = ""
		defer func() { client.csrfToken = savedCSRF }()

		_, err = client.PlaceOrder(token, testItems, 2490, "RSD")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})
}

// TestCheckout_Orders covers listing and per-user isolation
func TestCheckout_Orders(t *testing.T) {
	client := setupTestUser(t, "orders")

	placeOne := func(t *testing.T) *OrderResponse {
		t.Helper()
		token, err := client.MintPaymentToken()
		require.NoError(t, err)
		order, err := client.PlaceOrder(token, testItems, 2490, "RSD")
		require.NoError(t, err)
		return order
	}

	t.Run("list returns the user's orders", func(t *testing.T) {
		first := placeOne(t)
		second := placeOne(t)

		list, err := client.ListOrders()
		require.NoError(t, err)

		ids := make(map[string]bool, len(list.Orders))
		for _, o := range list.Orders {
			ids[o.ID] = true
		}
		assert.True(t, ids[first.ID])
		assert.True(t, ids[second.ID])
	})

	t.Run("get returns a single order", func(t *testing.T) {
		placed := placeOne(t)

		order, code, err := client.GetOrder(placed.ID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, placed.ID, order.ID)
		assert.Equal(t, testItems, order.Items)
	})

	t.Run("another user's order is not visible", func(t *testing.T) {
		placed := placeOne(t)

		other := setupTestUser(t, "peeker")
		_, code, err := other.GetOrder(placed.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, code)

		list, err := other.ListOrders()
		require.NoError(t, err)
		for _, o := range list.Orders {
			assert.NotEqual(t, placed.ID, o.ID)
		}
	})

	t.Run("order response never carries payment data", func(t *testing.T) {
		placed := placeOne(t)

		resp, err := client.Get(baseURL + "/api/v1/orders/" + placed.ID)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		bodyBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		body := string(bodyBytes)
		assert.NotContains(t, body, "payment_blob")
		assert.NotContains(t, body, "4111111111111111")
	})
}
