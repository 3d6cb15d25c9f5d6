package room

import (
	"sync"

	"parlor/internal/domain"
)

// Registry owns every active room session on the relay. Lookups take a
// read lock; activation takes the write lock only on first use of a room.
type Registry struct {
	log domain.MessageLog

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Session
}

// NewRegistry returns a registry that seeds reactivated rooms from log.
func NewRegistry(log domain.MessageLog) *Registry {
	return &Registry{log: log, rooms: make(map[domain.RoomID]*Session)}
}

// Activate returns the session for id, creating it on first use. A room
// with persisted history resumes past its last epoch and sequence number.
func (r *Registry) Activate(id domain.RoomID, name string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rooms[id]; ok {
		return s, nil
	}
	tail, found, err := r.log.Tail(id)
	if err != nil {
		return nil, err
	}
	if found {
		s = Resume(id, name, tail)
	} else {
		s = New(id, name)
	}
	r.rooms[id] = s
	return s, nil
}

// Lookup returns the session for id if the room is active.
func (r *Registry) Lookup(id domain.RoomID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[id]
	return s, ok
}

// List returns a snapshot of every active room, for the room directory.
func (r *Registry) List() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(r.rooms))
	for _, s := range r.rooms {
		out = append(out, s.Info())
	}
	return out
}
