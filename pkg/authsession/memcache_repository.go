package authsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
)

// MemcacheSessionRepository implements SessionRepository on a memcached
// cluster. Sessions are stored as JSON under their id with memcached's own
// TTL handling; the client is safe for concurrent use.
type MemcacheSessionRepository struct {
	client *memcache.Client
}

// NewMemcacheSessionRepository creates a repository over the given servers
// ("host:port" addresses).
func NewMemcacheSessionRepository(servers ...string) *MemcacheSessionRepository {
	return &MemcacheSessionRepository{
		client: memcache.New(servers...),
	}
}

// Ping verifies connectivity to the memcached cluster.
func (r *MemcacheSessionRepository) Ping() error {
	return r.client.Ping()
}

// Set persists the session as JSON with the TTL rounded up to whole seconds.
func (r *MemcacheSessionRepository) Set(ctx context.Context, session AuthSession, ttl time.Duration) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal auth session: %w", err)
	}

	seconds := int32(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}

	if err := r.client.Set(&memcache.Item{
		Key:        session.ID.String(),
		Value:      body,
		Expiration: seconds,
	}); err != nil {
		return fmt.Errorf("failed to store auth session: %w", err)
	}
	return nil
}

// Get fetches and decodes the session. A cache miss maps to
// ErrSessionNotFound; any other client failure is surfaced as-is.
func (r *MemcacheSessionRepository) Get(ctx context.Context, id uuid.UUID) (AuthSession, error) {
	item, err := r.client.Get(id.String())
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return AuthSession{}, ErrSessionNotFound
		}
		return AuthSession{}, fmt.Errorf("failed to fetch auth session: %w", err)
	}

	var session AuthSession
	if err := json.Unmarshal(item.Value, &session); err != nil {
		return AuthSession{}, fmt.Errorf("failed to unmarshal auth session: %w", err)
	}
	return session, nil
}

// Delete removes the session. A miss is treated as success.
func (r *MemcacheSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Delete(id.String()); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}
