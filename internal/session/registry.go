package session

import (
	"sort"
	"sync"
)

// Registry holds the live sessions of the process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s, replacing any session with the same id.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

// Remove unregisters the session with id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns every session, ordered by connection time.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt().Before(out[j].ConnectedAt())
	})
	return out
}

// OnBoard returns the sessions currently on boardID, skipping exceptID.
func (r *Registry) OnBoard(boardID, exceptID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for id, s := range r.sessions {
		if id == exceptID || s.BoardID() != boardID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CountOnBoard returns how many sessions are on boardID.
func (r *Registry) CountOnBoard(boardID string) int {
	return len(r.OnBoard(boardID, ""))
}
