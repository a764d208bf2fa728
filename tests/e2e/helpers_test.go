//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"testing"
	"time"

	"mlekara-shop/internal/security"

	"github.com/gorilla/websocket"
)

const testPassword = "Kajmak42!sir"

// TestClient wraps http.Client with cookie handling for a single user session.
// It stores the session's CSRF token and echoes it on state-changing requests.
type TestClient struct {
	*http.Client
	t            *testing.T
	sessionToken string
	csrfToken    string
	userID       string
	username     string
}

// NewTestClient creates a new test client with cookie jar
func NewTestClient(t *testing.T) *TestClient {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &TestClient{
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		t: t,
	}
}

// RegisterUser registers a new user and returns the response
func (tc *TestClient) RegisterUser(username, email, password string) (*UserResponse, error) {
	body := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}

	resp, err := tc.PostJSON("/api/v1/auth/register", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("register failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}

	tc.userID = result.ID
	tc.username = result.Username
	return &result, nil
}

// LoginUser logs in a user and stores the session and CSRF tokens
func (tc *TestClient) LoginUser(username, password string) (*LoginResponse, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	resp, err := tc.PostJSON("/api/v1/auth/login", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	tc.sessionToken = result.SessionToken
	tc.csrfToken = result.CSRFToken
	tc.userID = result.User.ID
	tc.username = result.User.Username
	return &result, nil
}

// Logout logs out the current user
func (tc *TestClient) Logout() error {
	resp, err := tc.PostJSON("/api/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("logout failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	tc.sessionToken = ""
	tc.csrfToken = ""
	return nil
}

// GetMe returns the current user information
func (tc *TestClient) GetMe() (*UserResponse, error) {
	resp, err := tc.Get(baseURL + "/api/v1/auth/me")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get me failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode me response: %w", err)
	}

	return &result, nil
}

// RotateCSRFToken fetches a fresh CSRF token and starts using it
func (tc *TestClient) RotateCSRFToken() (string, error) {
	resp, err := tc.Get(baseURL + "/api/v1/auth/csrf")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("csrf rotation failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode csrf response: %w", err)
	}

	tc.csrfToken = result.CSRFToken
	return result.CSRFToken, nil
}

// MintPaymentToken mints a checkout token for the logged-in user
func (tc *TestClient) MintPaymentToken() (*security.PaymentToken, error) {
	resp, err := tc.PostJSON("/api/v1/checkout/payment-token", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mint payment token failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result security.PaymentToken
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode payment token: %w", err)
	}

	return &result, nil
}

// PlaceOrder submits a checkout request and returns the accepted order
func (tc *TestClient) PlaceOrder(token *security.PaymentToken, items string, amountCents int64, currency string) (*OrderResponse, error) {
	body := map[string]any{
		"items":         items,
		"amount_cents":  amountCents,
		"currency":      currency,
		"payment_token": token,
		"payment": map[string]string{
			"card_number": "4111111111111111",
			"expiry":      "12/27",
			"cvv":         "123",
		},
	}

	resp, err := tc.PostJSON("/api/v1/checkout", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("place order failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &result, nil
}

// GetOrder fetches a single order by ID
func (tc *TestClient) GetOrder(orderID string) (*OrderResponse, int, error) {
	resp, err := tc.Get(fmt.Sprintf("%s/api/v1/orders/%s", baseURL, orderID))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var result OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &result, resp.StatusCode, nil
}

// ListOrders lists the current user's orders
func (tc *TestClient) ListOrders() (*ListOrdersResponse, error) {
	resp, err := tc.Get(baseURL + "/api/v1/orders")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list orders failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ListOrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}

	return &result, nil
}

// WaitForOrderStatus polls until the order reaches the wanted status
func (tc *TestClient) WaitForOrderStatus(orderID, status string, timeout time.Duration) (*OrderResponse, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		order, code, err := tc.GetOrder(orderID)
		if err != nil {
			return nil, err
		}
		if code == http.StatusOK && order.Status == status {
			return order, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("order %s never reached status %s within %v", orderID, status, timeout)
}

// ExportData fetches the user's privacy export
func (tc *TestClient) ExportData() (map[string]any, error) {
	resp, err := tc.Get(baseURL + "/api/v1/privacy/export")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("export failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}

	return result, nil
}

// DeleteAccount erases the user and everything they own. The password is
// re-confirmed server side before anything is removed.
func (tc *TestClient) DeleteAccount(password string) error {
	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/v1/privacy/account", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.csrfToken != "" {
		req.Header.Set(security.CSRFHeaderName, tc.csrfToken)
	}

	resp, err := tc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete account failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// PostJSON makes a POST request with JSON body and the session's CSRF token
func (tc *TestClient) PostJSON(path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if tc.csrfToken != "" {
		req.Header.Set(security.CSRFHeaderName, tc.csrfToken)
	}
	return tc.Do(req)
}

// Response types
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type LoginResponse struct {
	Success      bool         `json:"success"`
	User         UserResponse `json:"user"`
	SessionToken string       `json:"session_token"`
	CSRFToken    string       `json:"csrf_token"`
}

type OrderResponse struct {
	ID          string `json:"id"`
	Items       string `json:"items"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// WebSocket helpers

// WSClient represents a session-activity WebSocket client for testing
type WSClient struct {
	t        *testing.T
	conn     *websocket.Conn
	mu       sync.Mutex
	messages chan WSMessage
	done     chan struct{}
}

// WSMessage represents a frame on the session activity channel
type WSMessage struct {
	Type             string `json:"type"`
	Kind             string `json:"kind,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
	Message          string `json:"message,omitempty"`
}

// ConnectSessionChannel connects to the session activity WebSocket
func (tc *TestClient) ConnectSessionChannel() (*WSClient, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	header.Set("Cookie", "session_id="+tc.sessionToken)

	conn, _, err := dialer.Dial(wsURL+"/ws/session", header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	wsc := &WSClient{
		t:        tc.t,
		conn:     conn,
		messages: make(chan WSMessage, 100),
		done:     make(chan struct{}),
	}

	go wsc.readLoop()

	return wsc, nil
}

// readLoop reads messages from the WebSocket connection
func (wsc *WSClient) readLoop() {
	defer close(wsc.messages)

	for {
		select {
		case <-wsc.done:
			return
		default:
			_, data, err := wsc.conn.ReadMessage()
			if err != nil {
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				wsc.t.Logf("failed to unmarshal WebSocket message: %v", err)
				continue
			}

			select {
			case wsc.messages <- msg:
			default:
				wsc.t.Log("message channel full, dropping message")
			}
		}
	}
}

// SendActivity reports a user activity frame
func (wsc *WSClient) SendActivity(kind string) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	msg := map[string]string{
		"type": "activity",
		"kind": kind,
	}

	return wsc.conn.WriteJSON(msg)
}

// WaitForMessageType waits for a frame of a specific type
func (wsc *WSClient) WaitForMessageType(msgType string, timeout time.Duration) (*WSMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-wsc.messages:
			if !ok {
				return nil, fmt.Errorf("connection closed while waiting for message")
			}
			if msg.Type == msgType {
				return &msg, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("timeout waiting for %s message", msgType)
		}
	}
}

// Close closes the WebSocket connection
func (wsc *WSClient) Close() error {
	close(wsc.done)
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	return wsc.conn.Close()
}

// Test helpers

// uniqueUsername generates a unique username for testing
func uniqueUsername(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// uniqueEmail generates a unique email for testing
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@test.com", prefix, time.Now().UnixNano())
}

// setupTestUser creates and logs in a test user, returning the client
func setupTestUser(t *testing.T, prefix string) *TestClient {
	t.Helper()

	client := NewTestClient(t)
	username := uniqueUsername(prefix)
	email := uniqueEmail(prefix)

	_, err := client.RegisterUser(username, email, testPassword)
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	_, err = client.LoginUser(username, testPassword)
	if err != nil {
		t.Fatalf("failed to login user: %v", err)
	}

	return client
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// assertEqual checks if two values are equal
func assertEqual[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}
