package security

import (
	"crypto/hmac"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid CSRF token")

const (
	// CSRFCookieName is the HTTP-only cookie carrying the server copy of the
	// token for the double-submit check.
	CSRFCookieName = "csrf_token"
	// CSRFHeaderName is the header clients echo the token back in.
	CSRFHeaderName = "X-CSRF-Token"
	// CSRFFormField is the hidden form field alternative to the header.
	CSRFFormField = "csrf_token"

	// DefaultCSRFTokenTTL bounds how long an issued token stays valid.
	DefaultCSRFTokenTTL = 24 * time.Hour

	csrfNonceBytes = 16
	// tokenDelimiter joins the timestamp, nonce and signature segments.
	// Decimal digits and hex never contain '.', so splitting is unambiguous.
	tokenDelimiter = "."
)

// Guard issues and validates stateless anti-forgery tokens of the form
// "timestamp.nonce.signature" where signature = HMAC(secret, timestamp.nonce).
// Tokens are self-contained: no server-side lookup is needed to validate,
// only the signing secret. Concurrent Issue calls on one session produce
// distinct nonces that each validate independently until expiry.
type Guard struct {
	secret []byte
	ttl    time.Duration
}

// NewGuard creates a CSRF guard signing with secret. A non-positive ttl
// falls back to DefaultCSRFTokenTTL.
func NewGuard(secret []byte, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultCSRFTokenTTL
	}
	return &Guard{secret: secret, ttl: ttl}
}

// Issue mints a fresh token bound to the current time.
func (g *Guard) Issue() (string, error) {
	nonce, err := RandomHex(csrfNonceBytes)
	if err != nil {
		return "", err
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	payload := timestamp + tokenDelimiter + nonce
	signature := Sign(payload, g.secret)

	return payload + tokenDelimiter + signature, nil
}

// Validate reports whether token is well-formed, unexpired and carries a
// genuine signature. Malformed input fails closed; the signature check is
// constant time.
func (g *Guard) Validate(token string) bool {
	if token == "" {
		return false
	}

	parts := strings.SplitN(token, tokenDelimiter, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return false
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(timestamp, 0)) > g.ttl {
		return false
	}

	payload := parts[0] + tokenDelimiter + parts[1]
	return Verify(payload, parts[2], g.secret)
}

// TTL returns the validity window tokens are issued with.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// TokensMatch compares the client-submitted token against the cookie copy in
// constant time. Both halves of the double-submit pair must be byte-identical.
func TokensMatch(submitted, cookie string) bool {
	if submitted == "" || cookie == "" {
		return false
	}
	return hmac.Equal([]byte(submitted), []byte(cookie))
}
