package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exgate.org/internal/directory"
	"exgate.org/internal/ids"
	"exgate.org/internal/obs"
)

// SubmitInput carries everything needed to create a request. SubmittedBy is
// the authenticated user on whose behalf the request is filed.
type SubmitInput struct {
	ConsumerInstitutionID   string
	ConsumerInstitutionName string
	Services                []string
	Title                   string
	Description             string
	SubmittedBy             string
}

// Result pairs the primary outcome of an operation with the fate of its
// best-effort notification write. NotifyErr being non-nil means the request
// transition committed but the notification did not; callers must treat the
// operation as successful regardless.
type Result struct {
	Request      Request
	Notification *Notification
	NotifyErr    error
}

// Service owns the request lifecycle: status transitions, the conversation
// gate, admin annotations, and the hand-off to the notification dispatcher.
type Service struct {
	requests      RequestStore
	notifications NotificationStore
	notifier      Notifier
	directory     directory.Directory
	now           func() time.Time
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithDirectory wires the institution directory used to snapshot the
// consumer institution's display name at submission time.
func WithDirectory(d directory.Directory) ServiceOption {
	return func(s *Service) { s.directory = d }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the lifecycle service with explicit store handles.
func NewService(requests RequestStore, notifications NotificationStore, notifier Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		requests:      requests,
		notifications: notifications,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and creates a request in the Submitted state, then
// attempts the RequestSubmitted broadcast. The notification write is
// best-effort: its failure is logged and reported on the Result, never as an
// error.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Result, error) {
	services := normalizeServices(in.Services)
	if len(services) == 0 {
		return Result{}, fmt.Errorf("%w: at least one requested service is required", ErrValidation)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Result{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	instID := strings.TrimSpace(in.ConsumerInstitutionID)
	if instID == "" {
		return Result{}, fmt.Errorf("%w: consumer institution id is required", ErrValidation)
	}
	submittedBy := strings.TrimSpace(in.SubmittedBy)
	if submittedBy == "" {
		return Result{}, fmt.Errorf("%w: submitting user is required", ErrValidation)
	}

	// Snapshot the institution name at submission time. The directory wins
	// over the caller-supplied value when it knows the institution; the
	// stored name is deliberately not kept in sync afterwards.
	name := strings.TrimSpace(in.ConsumerInstitutionName)
	if s.directory != nil {
		if inst, err := s.directory.Find(ctx, instID); err == nil {
			name = inst.Name
		}
	}
	if name == "" {
		return Result{}, fmt.Errorf("%w: consumer institution name is required", ErrValidation)
	}

	now := s.now()
	req := Request{
		ID:                      ids.New(),
		ConsumerInstitutionID:   instID,
		ConsumerInstitutionName: name,
		SubmittedBy:             submittedBy,
		Services:                services,
		Title:                   title,
		Description:             strings.TrimSpace(in.Description),
		Status:                  StatusSubmitted,
		ConversationActive:      true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.requests.Create(ctx, &req); err != nil {
		return Result{}, err
	}

	res := Result{Request: req}
	n, err := s.notifier.RequestSubmitted(ctx, req)
	if err != nil {
		s.logNotifyFailure(req.ID, "request.submitted", err)
		res.NotifyErr = err
		return res, nil
	}
	res.Notification = &n
	return res, nil
}

// Approve moves a Submitted request to Approved and stamps the decision date.
// Re-deciding an already-decided request fails with ErrInvalidState.
func (s *Service) Approve(ctx context.Context, id string) (Request, error) {
	return s.requests.Decide(ctx, id, StatusApproved, "", s.now())
}

// Reject moves a Submitted request to Rejected, stamping the decision date
// and the reason. A blank reason falls back to DefaultRejectReason.
func (s *Service) Reject(ctx context.Context, id, reason string) (Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectReason
	}
	return s.requests.Decide(ctx, id, StatusRejected, reason, s.now())
}

// RequestMoreInfo addresses a notification to the request's original
// submitter without changing the request status. Unlike Submit, the
// notification write is the primary write here and fails loudly.
func (s *Service) RequestMoreInfo(ctx context.Context, id, message string) (Notification, error) {
	if strings.TrimSpace(message) == "" {
		return Notification{}, fmt.Errorf("%w: message is required", ErrValidation)
	}
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if strings.TrimSpace(req.SubmittedBy) == "" {
		return Notification{}, fmt.Errorf("%w: request has no resolvable submitter", ErrNotFound)
	}
	return s.notifier.MoreInfoRequested(ctx, req, strings.TrimSpace(message))
}

// StopConversation closes the per-request messaging channel. Idempotent and
// independent of the approval status.
func (s *Service) StopConversation(ctx context.Context, id string) (Request, error) {
	return s.requests.SetConversation(ctx, id, false)
}

// ResumeConversation reopens the per-request messaging channel.
func (s *Service) ResumeConversation(ctx context.Context, id string) (Request, error) {
	return s.requests.SetConversation(ctx, id, true)
}

// SaveAdminNote overwrites the administrative annotation. Only the latest
// value is retained; there is no notification side effect.
func (s *Service) SaveAdminNote(ctx context.Context, id, note string) (Request, error) {
	return s.requests.SetAdminNote(ctx, id, strings.TrimSpace(note))
}

// Get returns a single request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.requests.Get(ctx, id)
}

// List returns requests newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *Status) ([]Request, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, string(*status))
	}
	return s.requests.List(ctx, status)
}

// ListNotifications returns every notification tied to a request, newest
// first.
func (s *Service) ListNotifications(ctx context.Context, requestID string) ([]Notification, error) {
	return s.notifications.ListByRequest(ctx, requestID)
}

// Inbox returns the caller's notifications: addressed plus broadcast, newest
// first.
func (s *Service) Inbox(ctx context.Context, userID string) ([]Notification, error) {
	return s.notifications.ListForUser(ctx, userID)
}

// MarkNotificationRead flips the read flag on an inbox entry.
func (s *Service) MarkNotificationRead(ctx context.Context, id string, read bool) (Notification, error) {
	return s.notifications.SetRead(ctx, id, read)
}

// DeleteNotification removes an inbox entry.
func (s *Service) DeleteNotification(ctx context.Context, id string) error {
	return s.notifications.Delete(ctx, id)
}

func (s *Service) logNotifyFailure(requestID, event string, err error) {
	obs.LogEntry(map[string]any{
		"ts":         s.now().Format(time.RFC3339Nano),
		"level":      "error",
		"msg":        "notification_write_failed",
		"event":      event,
		"request_id": requestID,
		"error":      err.Error(),
	})
}

func normalizeServices(services []string) []string {
	var out []string
	for _, svc := range services {
		svc = strings.TrimSpace(svc)
		if svc == "" {
			continue
		}
		out = append(out, svc)
	}
	return out
}
