package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/middleware"
	"mlekara-shop/internal/service"
)

// PrivacyHandler serves data-subject requests
type PrivacyHandler struct {
	privacyService *service.PrivacyService
}

// NewPrivacyHandler creates a new privacy handler
func NewPrivacyHandler(privacyService *service.PrivacyService) *PrivacyHandler {
	return &PrivacyHandler{
		privacyService: privacyService,
	}
}

// ExportData returns a machine-readable copy of everything stored about the
// authenticated user
func (h *PrivacyHandler) ExportData(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	export, err := h.privacyService.ExportData(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			http.Error(w, `{"error":"User not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="data-export.json"`)
	json.NewEncoder(w).Encode(export)
}

// DeleteAccountRequest carries the password re-confirmation for erasure
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount erases the authenticated user's account and all related data.
// The session backing this request dies with it, so the cookie is cleared.
func (h *PrivacyHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.privacyService.DeleteAccount(r.Context(), userID, req.Password); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			http.Error(w, `{"error":"Password confirmation failed"}`, http.StatusForbidden)
		case errors.Is(err, domain.ErrUserNotFound):
			http.Error(w, `{"error":"User not found"}`, http.StatusNotFound)
		default:
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
