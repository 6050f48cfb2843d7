package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"exgate.org/internal/auth"
	"exgate.org/internal/exchange"
)

type submitRequest struct {
	ConsumerInstitutionID   string   `json:"consumer_institution_id"`
	ConsumerInstitutionName string   `json:"consumer_institution_name"`
	Services                []string `json:"services"`
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
}

type submitResponse struct {
	Request      exchange.Request       `json:"request"`
	Notification *exchange.Notification `json:"notification,omitempty"`
	NotifyError  string                 `json:"notify_error,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type moreInfoRequest struct {
	Message string `json:"message"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type listRequestsResponse struct {
	Items []exchange.Request `json:"items"`
}

type listNotificationsResponse struct {
	Items []exchange.Notification `json:"items"`
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitRequest(w, r)
	case http.MethodGet:
		a.listRequests(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRequestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/requests/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getRequest(w, r, id)
	case "approve":
		a.decideRequest(w, r, id, exchange.StatusApproved)
	case "reject":
		a.decideRequest(w, r, id, exchange.StatusRejected)
	case "more-info":
		a.requestMoreInfo(w, r, id)
	case "conversation/stop":
		a.setConversation(w, r, id, false)
	case "conversation/resume":
		a.setConversation(w, r, id, true)
	case "note":
		a.saveAdminNote(w, r, id)
	case "notifications":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listRequestNotifications(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) submitRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	instID := strings.TrimSpace(req.ConsumerInstitutionID)
	if instID == "" {
		instID = principal.InstitutionID
	}

	res, err := a.service.Submit(r.Context(), exchange.SubmitInput{
		ConsumerInstitutionID:   instID,
		ConsumerInstitutionName: req.ConsumerInstitutionName,
		Services:                req.Services,
		Title:                   req.Title,
		Description:             req.Description,
		SubmittedBy:             principal.UserID,
	})
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}

	resp := submitResponse{
		Request:      res.Request,
		Notification: res.Notification,
	}
	if res.NotifyErr != nil {
		resp.NotifyError = "notification could not be recorded"
	}

	w.Header().Set("Location", "/v1/requests/"+res.Request.ID)
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) listRequests(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var status *exchange.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st := exchange.Status(raw)
		status = &st
	}

	items, err := a.service.List(r.Context(), status)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRequestsResponse{Items: items})
}

func (a *API) getRequest(w http.ResponseWriter, r *http.Request, id string) {
	req, err := a.service.Get(r.Context(), id)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) decideRequest(w http.ResponseWriter, r *http.Request, id string, status exchange.Status) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requireAdmin(r); err != nil {
		respondError(w, http.StatusForbidden, "administrative role required")
		return
	}

	var (
		req exchange.Request
		err error
	)
	switch status {
	case exchange.StatusApproved:
		req, err = a.service.Approve(r.Context(), id)
	case exchange.StatusRejected:
		var body rejectRequest
		// The reason body is optional for rejections.
		if r.ContentLength > 0 {
			if decodeErr := decodeJSON(w, r, &body); decodeErr != nil {
				writeError(w, r, http.StatusBadRequest, decodeErr.Error())
				return
			}
		}
		req, err = a.service.Reject(r.Context(), id, body.Reason)
	}
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}

	action := "exchange.request.approve"
	details := fmt.Sprintf("request %s approved", id)
	if status == exchange.StatusRejected {
		action = "exchange.request.reject"
		details = fmt.Sprintf("request %s rejected: %s", id, req.Reason)
	}
	a.recorder.Record(r.Context(), action, details)

	writeJSON(w, http.StatusOK, req)
}

func (a *API) requestMoreInfo(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requireAdmin(r); err != nil {
		respondError(w, http.StatusForbidden, "administrative role required")
		return
	}

	var body moreInfoRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	notif, err := a.service.RequestMoreInfo(r.Context(), id, body.Message)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}

	a.recorder.Record(r.Context(), "exchange.request.more_info",
		fmt.Sprintf("request %s: more information requested", id))

	writeJSON(w, http.StatusCreated, notif)
}

func (a *API) setConversation(w http.ResponseWriter, r *http.Request, id string, active bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requireAdmin(r); err != nil {
		respondError(w, http.StatusForbidden, "administrative role required")
		return
	}

	var (
		req exchange.Request
		err error
	)
	if active {
		req, err = a.service.ResumeConversation(r.Context(), id)
	} else {
		req, err = a.service.StopConversation(r.Context(), id)
	}
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}

	verb := "stopped"
	if active {
		verb = "resumed"
	}
	a.recorder.Record(r.Context(), "exchange.conversation."+verb,
		fmt.Sprintf("request %s: conversation %s", id, verb))

	writeJSON(w, http.StatusOK, req)
}

func (a *API) saveAdminNote(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if err := a.requireAdmin(r); err != nil {
		respondError(w, http.StatusForbidden, "administrative role required")
		return
	}

	var body noteRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req, err := a.service.SaveAdminNote(r.Context(), id, body.Note)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}

	a.recorder.Record(r.Context(), "exchange.request.note",
		fmt.Sprintf("request %s: admin note updated", id))

	writeJSON(w, http.StatusOK, req)
}

func (a *API) listRequestNotifications(w http.ResponseWriter, r *http.Request, id string) {
	items, err := a.service.ListNotifications(r.Context(), id)
	if err != nil {
		a.handleExchangeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{Items: items})
}
