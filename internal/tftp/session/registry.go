package session

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is a read-only view of one session's state.
type Snapshot struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Block     uint16    `json:"block"`
	Completed bool      `json:"completed"`
	Attempt   int       `json:"attempt"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshotter is implemented by both session kinds.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Registry tracks live sessions by id for the ops surface. Sessions are
// registered by their owner and removed through the OnClose hook.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Snapshotter
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Snapshotter)}
}

func (r *Registry) Register(id string, s Snapshotter) {
	if id == "" || s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns snapshots of all registered sessions, ordered by id.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	members := make([]Snapshotter, 0, len(r.sessions))
	for _, s := range r.sessions {
		members = append(members, s)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(members))
	for _, s := range members {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
