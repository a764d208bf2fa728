package middleware

import (
	"crypto/hmac"
	"log/slog"
	"net/http"
	"strings"

	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/security"
)

// CSRF middleware protects state-changing requests with two independent
// checks: the token must carry a valid signature that has not aged past its
// TTL, and it must match the token bound to the caller's session.
//
// Token Validation Flow:
// 1. Skip for safe HTTP methods (GET, HEAD, OPTIONS); refresh the csrf cookie
// 2. Skip for endpoints that don't require CSRF protection (health, metrics, websocket)
// 3. Extract CSRF token from request (form data or headers)
// 4. Verify the token signature and expiry
// 5. Verify the token against session.CSRFToken using constant-time comparison
// 6. When the double-submit cookie is present, verify it matches the token
// 7. Log security events and reject with 403 Forbidden on any failure
//
// Token sources (checked in order):
// - Form field: csrf_token
// - Header: X-CSRF-Token
// - Header: X-XSRF-Token (alternate)
func CSRF(guard *security.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Safe methods only read state; hand the client its cookie copy.
			if isSafeMethod(r.Method) {
				refreshCSRFCookie(w, r, guard)
				next.ServeHTTP(w, r)
				return
			}

			// Skip CSRF validation for exempt endpoints
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// Extract session from context (set by Auth middleware)
			session, ok := GetSession(r.Context())
			if !ok {
				http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}

			submittedToken := extractCSRFToken(r)

			if submittedToken == "" {
				rejectCSRF(w, r, session.UserID, "missing_token")
				return
			}

			// Signature and TTL check; fails closed on malformed tokens.
			if !guard.Validate(submittedToken) {
				rejectCSRF(w, r, session.UserID, "invalid_signature")
				return
			}

			// The token must be the one bound to this session, not merely
			// any token we ever signed.
			if !hmac.Equal([]byte(session.CSRFToken), []byte(submittedToken)) {
				rejectCSRF(w, r, session.UserID, "session_mismatch")
				return
			}

			// Double-submit check against the cookie copy when present.
			if cookie, err := r.Cookie(security.CSRFCookieName); err == nil {
				if !security.TokensMatch(submittedToken, cookie.Value) {
					rejectCSRF(w, r, session.UserID, "cookie_mismatch")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// refreshCSRFCookie mirrors the session's CSRF token into a cookie readable
// by the storefront script. HttpOnly is off on purpose: the client must echo
// the value back in a header, which a cross-site attacker cannot do.
func refreshCSRFCookie(w http.ResponseWriter, r *http.Request, guard *security.Guard) {
	session, ok := GetSession(r.Context())
	if !ok {
		return
	}

	if cookie, err := r.Cookie(security.CSRFCookieName); err == nil && cookie.Value == session.CSRFToken {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     security.CSRFCookieName,
		Value:    session.CSRFToken,
		Path:     "/",
		MaxAge:   int(guard.TTL().Seconds()),
		Secure:   r.TLS != nil,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

// isSafeMethod returns true if the HTTP method is idempotent and cacheable.
// These methods should not modify state and don't require CSRF tokens.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// isExemptPath returns true if the request path should skip CSRF validation.
// Exempted paths include health checks, metrics, and websocket upgrades.
func isExemptPath(path string) bool {
	exemptPaths := []string{
		"/health",
		"/metrics",
		"/ws/",
	}

	for _, exemptPath := range exemptPaths {
		if strings.HasPrefix(path, exemptPath) {
			return true
		}
	}
	return false
}

// extractCSRFToken extracts the CSRF token from the request.
// Checks sources in order: form data, X-CSRF-Token header, X-XSRF-Token header.
func extractCSRFToken(r *http.Request) string {
	// Check form data (for traditional HTML form submissions)
	token := r.FormValue(security.CSRFFormField)
	if token != "" {
		return token
	}

	// Check X-CSRF-Token header (for AJAX/API requests)
	token = r.Header.Get(security.CSRFHeaderName)
	if token != "" {
		return token
	}

	// Check X-XSRF-Token header (alternate header name)
	token = r.Header.Get("X-XSRF-Token")
	return token
}

// rejectCSRF logs a security event, counts it and rejects the request.
func rejectCSRF(w http.ResponseWriter, r *http.Request, userID, reason string) {
	observability.CSRFValidationFailures.WithLabelValues(reason).Inc()
	slog.Warn("CSRF validation failed",
		slog.String("user_id", userID),
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.RequestURI),
		slog.String("remote_addr", r.RemoteAddr),
	)
	http.Error(w, `{"error":"Forbidden"}`, http.StatusForbidden)
}
