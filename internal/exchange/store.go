package exchange

import (
	"context"
	"time"
)

// RequestStore is the persistence seam for requests. Implementations must
// distinguish "no such id" (ErrNotFound) from "id exists but the status guard
// matched zero rows" (ErrInvalidState) on decision updates.
type RequestStore interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (Request, error)
	// List returns requests newest first, optionally filtered by status.
	List(ctx context.Context, status *Status) ([]Request, error)
	// Decide moves a Submitted request to Approved or Rejected, recording
	// the decision date and (for rejections) the reason in the same
	// guarded update.
	Decide(ctx context.Context, id string, status Status, reason string, decidedAt time.Time) (Request, error)
	SetConversation(ctx context.Context, id string, active bool) (Request, error)
	SetAdminNote(ctx context.Context, id, note string) (Request, error)
}

// NotificationStore persists the advisory notification records created by the
// dispatcher and read by the inbox surface.
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	// ListByRequest returns every notification tied to a request, newest
	// first, broadcasts included.
	ListByRequest(ctx context.Context, requestID string) ([]Notification, error)
	// ListForUser returns the caller's inbox: notifications addressed to
	// the user plus broadcasts, newest first.
	ListForUser(ctx context.Context, userID string) ([]Notification, error)
	SetRead(ctx context.Context, id string, read bool) (Notification, error)
	Delete(ctx context.Context, id string) error
}

// Notifier turns request-lifecycle events into persisted notifications. The
// notify package provides the production implementation.
type Notifier interface {
	RequestSubmitted(ctx context.Context, req Request) (Notification, error)
	MoreInfoRequested(ctx context.Context, req Request, message string) (Notification, error)
}
