// Package notify translates request-lifecycle events into persisted
// notification records. The dispatcher holds no state beyond the notification
// store handle; each event maps to exactly one record.
package notify

import (
	"context"
	"fmt"
	"time"

	"exgate.org/internal/exchange"
	"exgate.org/internal/ids"
)

// Dispatcher implements exchange.Notifier on top of a notification store.
//
// Approval and rejection deliberately do not emit notifications through this
// path; clients observe decisions by polling the request itself. Adding them
// later only needs a new event method here.
type Dispatcher struct {
	store exchange.NotificationStore
	now   func() time.Time
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.now = fn
		}
	}
}

// NewDispatcher constructs a dispatcher writing to the given store.
func NewDispatcher(store exchange.NotificationStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ exchange.Notifier = (*Dispatcher)(nil)

// RequestSubmitted records the submission broadcast. No recipient: the entry
// is visible to every party privy to the request.
func (d *Dispatcher) RequestSubmitted(ctx context.Context, req exchange.Request) (exchange.Notification, error) {
	n := exchange.Notification{
		ID:        ids.New(),
		RequestID: req.ID,
		Message:   fmt.Sprintf("New request submitted: %s", req.Title),
		CreatedAt: d.now(),
	}
	if err := d.store.Create(ctx, &n); err != nil {
		return exchange.Notification{}, err
	}
	return n, nil
}

// MoreInfoRequested addresses the caller-supplied message to the request's
// original submitter.
func (d *Dispatcher) MoreInfoRequested(ctx context.Context, req exchange.Request, message string) (exchange.Notification, error) {
	n := exchange.Notification{
		ID:              ids.New(),
		RequestID:       req.ID,
		RecipientUserID: req.SubmittedBy,
		Message:         message,
		CreatedAt:       d.now(),
	}
	if err := d.store.Create(ctx, &n); err != nil {
		return exchange.Notification{}, err
	}
	return n, nil
}
