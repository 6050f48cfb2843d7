package exchange

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRequests implements RequestStore with in-process concurrency
// safety. Used by tests and local development without a database; production
// runs on the Postgres store.
type InMemoryRequests struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewInMemoryRequests creates an empty in-memory request store.
func NewInMemoryRequests() *InMemoryRequests {
	return &InMemoryRequests{requests: make(map[string]*Request)}
}

var _ RequestStore = (*InMemoryRequests)(nil)

func (s *InMemoryRequests) Create(ctx context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneRequest(*req)
	s.requests[req.ID] = &cp
	return nil
}

func (s *InMemoryRequests) Get(ctx context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return cloneRequest(*req), nil
}

func (s *InMemoryRequests) List(ctx context.Context, status *Status) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Request
	for _, req := range s.requests {
		if status != nil && req.Status != *status {
			continue
		}
		out = append(out, cloneRequest(*req))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryRequests) Decide(ctx context.Context, id string, status Status, reason string, decidedAt time.Time) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	// Same guard the SQL store enforces with WHERE status = 'Submitted'.
	if req.Status != StatusSubmitted {
		return Request{}, ErrInvalidState
	}
	req.Status = status
	req.DecisionDate = &decidedAt
	req.Reason = reason
	req.UpdatedAt = decidedAt
	return cloneRequest(*req), nil
}

func (s *InMemoryRequests) SetConversation(ctx context.Context, id string, active bool) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	req.ConversationActive = active
	req.UpdatedAt = time.Now().UTC()
	return cloneRequest(*req), nil
}

func (s *InMemoryRequests) SetAdminNote(ctx context.Context, id, note string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	req.AdminNote = note
	req.UpdatedAt = time.Now().UTC()
	return cloneRequest(*req), nil
}

// InMemoryNotifications implements NotificationStore in process memory.
type InMemoryNotifications struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewInMemoryNotifications creates an empty in-memory notification store.
func NewInMemoryNotifications() *InMemoryNotifications {
	return &InMemoryNotifications{notifications: make(map[string]*Notification)}
}

var _ NotificationStore = (*InMemoryNotifications)(nil)

func (s *InMemoryNotifications) Create(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *InMemoryNotifications) ListByRequest(ctx context.Context, requestID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.notifications {
		if n.RequestID != requestID {
			continue
		}
		out = append(out, *n)
	}
	sortNotifications(out)
	return out, nil
}

func (s *InMemoryNotifications) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.notifications {
		if n.RecipientUserID != "" && n.RecipientUserID != userID {
			continue
		}
		out = append(out, *n)
	}
	sortNotifications(out)
	return out, nil
}

func (s *InMemoryNotifications) SetRead(ctx context.Context, id string, read bool) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	n.IsRead = read
	return *n, nil
}

func (s *InMemoryNotifications) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func cloneRequest(req Request) Request {
	out := req
	out.Services = append([]string(nil), req.Services...)
	if req.DecisionDate != nil {
		d := *req.DecisionDate
		out.DecisionDate = &d
	}
	return out
}

func sortNotifications(list []Notification) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
