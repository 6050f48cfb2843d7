package httpapi

import (
	"net/http"
	"strings"

	"exgate.org/internal/auth"
)

func (a *API) handleInbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	items, err := a.service.Inbox(r.Context(), userID)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{Items: items})
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, action, _ := strings.Cut(path, "/")

	switch {
	case action == "" && r.Method == http.MethodDelete:
		if err := a.service.DeleteNotification(r.Context(), id); err != nil {
			a.handleExchangeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "read" && r.Method == http.MethodPost:
		a.setNotificationRead(w, r, id, true)
	case action == "unread" && r.Method == http.MethodPost:
		a.setNotificationRead(w, r, id, false)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) setNotificationRead(w http.ResponseWriter, r *http.Request, id string, read bool) {
	notif, err := a.service.MarkNotificationRead(r.Context(), id, read)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notif)
}
