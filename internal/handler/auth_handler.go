package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/middleware"
	"mlekara-shop/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	facade      *service.SecurityFacade
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *service.AuthService, facade *service.SecurityFacade) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		facade:      facade,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success      bool         `json:"success"`
	User         UserResponse `json:"user"`
	SessionToken string       `json:"session_token"`
	CSRFToken    string       `json:"csrf_token"`
}

// CSRFTokenResponse carries a freshly rotated anti-forgery token.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// PasswordStrengthRequest represents a password strength check request
type PasswordStrengthRequest struct {
	Password string `json:"password"`
}

func isProduction() bool {
	return os.Getenv("ENVIRONMENT") == "production"
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, `{"error":"Invalid input"}`, http.StatusBadRequest)
		case errors.Is(err, domain.ErrWeakPassword):
			http.Error(w, `{"error":"Password too weak"}`, http.StatusBadRequest)
		case errors.Is(err, domain.ErrUsernameExists), errors.Is(err, domain.ErrEmailExists):
			// Do not reveal which field collided
			http.Error(w, `{"error":"User already exists"}`, http.StatusConflict)
		default:
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	resp := UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserNotFound) {
			http.Error(w, `{"error":"Invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    session.Token,
		Path:     "/",
		MaxAge:   86400, // 24 hours
		HttpOnly: true,
		Secure:   isProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	resp := LoginResponse{
		Success: true,
		User: UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
		SessionToken: session.Token,
		CSRFToken:    session.CSRFToken,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"User not found"}`, http.StatusNotFound)
		return
	}

	resp := UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"Session not found"}`, http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), session.Token); err != nil {
		http.Error(w, `{"error":"Failed to logout"}`, http.StatusInternalServerError)
		return
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// LogoutAll revokes every session belonging to the authenticated user.
// Recommended after a password change or a suspected account takeover.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"Session not found"}`, http.StatusUnauthorized)
		return
	}

	if err := h.authService.LogoutEverywhere(r.Context(), session.UserID); err != nil {
		http.Error(w, `{"error":"Failed to logout"}`, http.StatusInternalServerError)
		return
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// CSRFToken rotates the anti-forgery token bound to the current session and
// returns the new value. Clients call this after login and whenever a request
// comes back 403.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r.Context())
	if !ok {
		http.Error(w, `{"error":"Session not found"}`, http.StatusUnauthorized)
		return
	}

	token, err := h.authService.RotateCSRFToken(r.Context(), session.Token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
			http.Error(w, `{"error":"Session not found"}`, http.StatusUnauthorized)
			return
		}
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CSRFTokenResponse{CSRFToken: token})
}

// PasswordStrength scores a candidate password without storing it. Open to
// unauthenticated callers so the registration form can give live feedback.
func (h *AuthHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req PasswordStrengthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	strength := h.facade.CheckPasswordStrength(req.Password)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(strength)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}
