package httpapi

import (
	"net/http"
	"strings"
	"time"

	"exgate.org/internal/auth"
)

type tokenRequest struct {
	User          string `json:"user"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken issues short-lived bearer tokens. Stands in for the real
// identity provider; the rest of the service only ever sees the principal.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		writeError(w, r, http.StatusBadRequest, "role is required")
		return
	}

	token, err := auth.GenerateToken(user, role, req.InstitutionID, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(a.tokenTTL),
	})
}
