package receiving

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type registryEntry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Registry keeps the open sessions. Idle sessions are dropped lazily when
// they are next looked up or when a new session is opened.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*registryEntry
	idleTTL  time.Duration
	factory  func() *Controller
	now      func() time.Time
}

// NewRegistry builds a registry creating controllers with factory.
func NewRegistry(idleTTL time.Duration, factory func() *Controller) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*registryEntry),
		idleTTL:  idleTTL,
		factory:  factory,
		now:      time.Now,
	}
}

// Open starts a new session.
func (r *Registry) Open() (uuid.UUID, *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, entry := range r.sessions {
		if r.expired(entry, now) {
			delete(r.sessions, id)
		}
	}
	id := uuid.New()
	ctrl := r.factory()
	r.sessions[id] = &registryEntry{ctrl: ctrl, lastSeen: now}
	return id, ctrl
}

// Get returns the controller of a live session.
func (r *Registry) Get(id uuid.UUID) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if r.expired(entry, now) {
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = now
	return entry.ctrl, nil
}

// Close forgets a session.
func (r *Registry) Close(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) expired(entry *registryEntry, now time.Time) bool {
	return r.idleTTL > 0 && now.Sub(entry.lastSeen) > r.idleTTL
}
