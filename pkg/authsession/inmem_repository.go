package authsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemorySessionRepository implements SessionRepository with an in-process
// map. Intended for tests and local development.
type InMemorySessionRepository struct {
	mutex    sync.RWMutex
	sessions map[uuid.UUID]storedSession
}

type storedSession struct {
	session   AuthSession
	expiresAt time.Time
}

// NewInMemorySessionRepository creates an empty in-memory repository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[uuid.UUID]storedSession),
	}
}

// Set stores the session with the given TTL.
func (r *InMemorySessionRepository) Set(ctx context.Context, session AuthSession, ttl time.Duration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.sessions[session.ID] = storedSession{
		session:   session,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the session if present and not expired. Expired entries are
// removed lazily on read.
func (r *InMemorySessionRepository) Get(ctx context.Context, id uuid.UUID) (AuthSession, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, exists := r.sessions[id]
	if !exists {
		return AuthSession{}, ErrSessionNotFound
	}
	if time.Now().After(stored.expiresAt) {
		delete(r.sessions, id)
		return AuthSession{}, ErrSessionNotFound
	}
	return stored.session, nil
}

// Delete removes the session if present.
func (r *InMemorySessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.sessions, id)
	return nil
}
