package security

import (
	"crypto/hmac"
	"strconv"
	"time"
)

// DefaultPaymentTokenTTL bounds a checkout attempt. Expiry is absolute:
// a retry must mint a new token.
const DefaultPaymentTokenTTL = 15 * time.Minute

// PaymentToken is a short-lived keyed proof that a checkout request came
// from an authenticated user within a time window. It lives for a single
// request exchange and is never persisted.
type PaymentToken struct {
	Value     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PaymentTokenizer mints and validates payment tokens. It is stateless and
// does not track token reuse; the order pipeline dedupes on order ID instead.
type PaymentTokenizer struct {
	secret []byte
	ttl    time.Duration
}

// NewPaymentTokenizer creates a tokenizer signing with secret. A non-positive
// ttl falls back to DefaultPaymentTokenTTL.
func NewPaymentTokenizer(secret []byte, ttl time.Duration) *PaymentTokenizer {
	if ttl <= 0 {
		ttl = DefaultPaymentTokenTTL
	}
	return &PaymentTokenizer{secret: secret, ttl: ttl}
}

// Mint creates a token for userID valid from now until now+ttl.
func (t *PaymentTokenizer) Mint(userID string, now time.Time) PaymentToken {
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(t.ttl)
	return PaymentToken{
		Value:     t.compute(userID, issuedAt, expiresAt),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
}

// Validate reports whether value is the genuine token for the given user and
// window at time now. Pure function of its inputs: expired tokens are
// rejected before any comparison, and the comparison itself is constant time.
func (t *PaymentTokenizer) Validate(value, userID string, issuedAt, expiresAt, now time.Time) bool {
	if value == "" || now.After(expiresAt) {
		return false
	}
	expected := t.compute(userID, issuedAt.Truncate(time.Second), expiresAt.Truncate(time.Second))
	return hmac.Equal([]byte(expected), []byte(value))
}

func (t *PaymentTokenizer) compute(userID string, issuedAt, expiresAt time.Time) string {
	payload := userID +
		"|" + strconv.FormatInt(issuedAt.Unix(), 10) +
		"|" + strconv.FormatInt(expiresAt.Unix(), 10)
	return Sign(payload, t.secret)
}
