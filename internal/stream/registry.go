package stream

import (
	"sort"
	"sync"
	"time"
)

// Viewer describes one attached stream client.
type Viewer struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	AttachedAt time.Time `json:"attached_at"`
	Frames     uint64    `json:"frames"`
}

// Registry tracks viewers while they are attached.
type Registry struct {
	mu      sync.Mutex
	viewers map[string]*Viewer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{viewers: make(map[string]*Viewer)}
}

// Register adds a viewer. Registering an existing id is a no-op.
func (r *Registry) Register(id, remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.viewers[id]; ok {
		return
	}
	r.viewers[id] = &Viewer{ID: id, RemoteAddr: remoteAddr, AttachedAt: time.Now()}
}

// Remove drops a viewer and reports how many remain.
func (r *Registry) Remove(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.viewers, id)
	return len(r.viewers)
}

// MarkFrame counts one delivered frame for id.
func (r *Registry) MarkFrame(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.viewers[id]; ok {
		v.Frames++
	}
}

// Count returns the number of attached viewers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.viewers)
}

// List returns a snapshot of attached viewers ordered by attach time.
func (r *Registry) List() []Viewer {
	r.mu.Lock()
	out := make([]Viewer, 0, len(r.viewers))
	for _, v := range r.viewers {
		out = append(out, *v)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttachedAt.Equal(out[j].AttachedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AttachedAt.Before(out[j].AttachedAt)
	})
	return out
}
