package service

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/security"
)

var ErrNotInitialized = errors.New("security facade not initialized")

// SecurityFacade bundles the crypto primitives behind one surface so callers
// never touch keys directly. It caches the process-level CSRF token used for
// outbound calls to the payment gateway and reissues it before it expires.
type SecurityFacade struct {
	codec     *security.Codec
	guard     *security.Guard
	tokenizer *security.PaymentTokenizer
	store     *security.SecureStore

	mu          sync.Mutex
	initialized bool
	csrfToken   string
	csrfIssued  time.Time
}

func NewSecurityFacade(codec *security.Codec, guard *security.Guard, tokenizer *security.PaymentTokenizer, store *security.SecureStore) *SecurityFacade {
	return &SecurityFacade{
		codec:     codec,
		guard:     guard,
		tokenizer: tokenizer,
		store:     store,
	}
}

// Initialize issues the first CSRF token. Safe to call more than once; only
// the first call does any work.
func (f *SecurityFacade) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}
	if err := f.refreshCSRFLocked(); err != nil {
		return err
	}
	f.initialized = true
	return nil
}

// Encrypt encrypts v under the configured key.
func (f *SecurityFacade) Encrypt(v any) (string, error) {
	return f.codec.Encrypt(v)
}

// Decrypt reverses Encrypt.
func (f *SecurityFacade) Decrypt(payload string) (any, error) {
	return f.codec.Decrypt(payload)
}

// Hash returns the salted one-way digest of value.
func (f *SecurityFacade) Hash(value string) string {
	return f.codec.HashWithSalt(value)
}

// GetCSRFToken returns the cached token, reissuing when the cached one has
// lived past half its TTL so callers never hold a token about to expire.
func (f *SecurityFacade) GetCSRFToken() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return "", ErrNotInitialized
	}
	if time.Since(f.csrfIssued) > f.guard.TTL()/2 {
		if err := f.refreshCSRFLocked(); err != nil {
			return "", err
		}
	}
	return f.csrfToken, nil
}

// ValidateCSRFToken reports whether token is genuine and unexpired.
func (f *SecurityFacade) ValidateCSRFToken(token string) bool {
	return f.guard.Validate(token)
}

// SecureRequest attaches the CSRF token header to an outbound request.
func (f *SecurityFacade) SecureRequest(req *http.Request) error {
	token, err := f.GetCSRFToken()
	if err != nil {
		return err
	}
	req.Header.Set(security.CSRFHeaderName, token)
	return nil
}

// MintPaymentToken issues a payment token for userID.
func (f *SecurityFacade) MintPaymentToken(userID string) security.PaymentToken {
	return f.tokenizer.Mint(userID, time.Now())
}

// ValidatePaymentToken checks a payment token echoed back by a client.
func (f *SecurityFacade) ValidatePaymentToken(token security.PaymentToken, userID string) bool {
	return f.tokenizer.Validate(token.Value, userID, token.IssuedAt, token.ExpiresAt, time.Now())
}

// Sanitize HTML-escapes every string reachable from v.
func (f *SecurityFacade) Sanitize(v any) any {
	return security.Sanitize(v)
}

// CheckPasswordStrength scores a candidate password.
func (f *SecurityFacade) CheckPasswordStrength(password string) security.PasswordStrength {
	return security.CheckPasswordStrength(password)
}

// StoreSecure encrypts and stores a value under key.
func (f *SecurityFacade) StoreSecure(key string, value any) error {
	return f.store.Set(key, value)
}

// RetrieveSecure fetches and decrypts a stored value.
func (f *SecurityFacade) RetrieveSecure(key string) (any, error) {
	return f.store.Get(key)
}

// DeleteSecure removes a stored value.
func (f *SecurityFacade) DeleteSecure(key string) {
	f.store.Delete(key)
}

// Reset clears all secure storage and drops the cached CSRF token. Called on
// logout so nothing outlives the session that created it.
func (f *SecurityFacade) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.csrfToken = ""
	f.csrfIssued = time.Time{}
	f.initialized = false
	f.store.Clear()
}

func (f *SecurityFacade) refreshCSRFLocked() error {
	token, err := f.guard.Issue()
	if err != nil {
		return err
	}
	f.csrfToken = token
	f.csrfIssued = time.Now()
	observability.CSRFTokensIssued.Inc()
	return nil
}
