// Package gateway talks to the external payment authorization service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrInvalidResponse = errors.New("invalid response from payment gateway")

// RequestSigner attaches outgoing-request credentials. The security facade
// implements it.
type RequestSigner interface {
	SecureRequest(req *http.Request) error
}

// AuthorizationRequest is the charge attempt sent to the gateway. Payment is
// the decrypted payment envelope from checkout.
type AuthorizationRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Payment     any    `json:"payment"`
}

// AuthorizationResult is the gateway's verdict. A declined charge is a valid
// result, not an error.
type AuthorizationResult struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Client handles requests to the payment gateway
type Client struct {
	baseURL    string
	signer     RequestSigner
	httpClient *http.Client
}

// NewClient creates a new payment gateway client. signer may be nil.
func NewClient(baseURL string, signer RequestSigner) *Client {
	return &Client{
		baseURL: baseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Authorize submits a charge for authorization
func (c *Client) Authorize(ctx context.Context, authReq *AuthorizationRequest) (*AuthorizationResult, error) {
	body, err := json.Marshal(authReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authorization request: %w", err)
	}

	url := c.baseURL + "/v1/authorize"

	// Retry logic with exponential backoff
	var resp *http.Response
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		if c.signer != nil {
			if err := c.signer.SecureRequest(req); err != nil {
				return nil, fmt.Errorf("failed to sign request: %w", err)
			}
		}

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if resp != nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		if attempt < 3 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to authorize after 3 attempts: %w", lastErr)
	}
	defer resp.Body.Close()

	var result AuthorizationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if !result.Approved && result.Reason == "" {
		return nil, ErrInvalidResponse
	}

	return &result, nil
}
