// Package audit keeps an append-only record of privileged administrative
// actions. Entries are written at the call site of each action, never derived
// automatically from request transitions.
package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"exgate.org/internal/auth"
	"exgate.org/internal/ids"
	"exgate.org/internal/obs"
)

// Entry is an immutable record of a privileged action taken by an identified
// user. The core never updates or deletes entries.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists audit entries. Append-only by contract.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// List returns entries newest first, capped at limit.
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder writes audit entries without ever failing the governing action: a
// gap in the trail must not block the administrative operation itself, so
// persistence failures are logged and swallowed.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one entry attributed to the authenticated caller. When the
// context carries no principal the actor is recorded as "system".
func (r *Recorder) Record(ctx context.Context, action, details string) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	userID := "system"
	if id, ok := auth.UserIDFromContext(ctx); ok {
		userID = id
	}
	entry := Entry{
		ID:        ids.New(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: r.now(),
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		obs.LogEntry(map[string]any{
			"ts":      r.now().Format(time.RFC3339Nano),
			"level":   "error",
			"msg":     "audit_append_failed",
			"action":  action,
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	obs.LogEntry(map[string]any{
		"ts":      entry.CreatedAt.Format(time.RFC3339Nano),
		"type":    "audit",
		"event":   action,
		"user_id": userID,
		"details": details,
	})
}

// List exposes the trail for the external audit viewer, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return r.store.List(ctx, limit)
}

// InMemory is a slice-backed Store for tests and local development.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
	failing bool
}

// NewInMemory creates an empty in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

var _ Store = (*InMemory)(nil)

// FailAppends makes subsequent Append calls fail. Test hook for the
// swallow-on-failure contract.
func (s *InMemory) FailAppends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = fail
}

func (s *InMemory) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errAppendFailed
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *InMemory) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Entry(nil), s.entries...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var errAppendFailed = errors.New("audit store unavailable")
