package directory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Institution is a read-only directory entry describing a registered
// consumer or provider institution.
type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Services  []string  `json:"services"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound indicates the institution is not registered.
var ErrNotFound = errors.New("institution not found")

// Directory is the read-only lookup surface the broker consumes. Institution
// registration and maintenance live outside this service.
type Directory interface {
	Find(ctx context.Context, id string) (Institution, error)
	List(ctx context.Context) ([]Institution, error)
}

// InMemory is a map-backed Directory for tests and local development.
type InMemory struct {
	mu           sync.RWMutex
	institutions map[string]Institution
}

// NewInMemory creates an empty in-memory directory.
func NewInMemory() *InMemory {
	return &InMemory{institutions: make(map[string]Institution)}
}

// Put registers or replaces an institution entry.
func (d *InMemory) Put(inst Institution) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.institutions[inst.ID] = inst
}

func (d *InMemory) Find(ctx context.Context, id string) (Institution, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	inst, ok := d.institutions[id]
	if !ok {
		return Institution{}, ErrNotFound
	}
	return inst, nil
}

func (d *InMemory) List(ctx context.Context) ([]Institution, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Institution, 0, len(d.institutions))
	for _, inst := range d.institutions {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
