package authsession

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Get when no session exists for the id,
// whether it never existed, expired, or was already consumed. Callers treat
// all three the same: the login attempt is not resumable.
var ErrSessionNotFound = errors.New("auth session not found")

// SessionRepository is the TTL-bound cache port for auth sessions.
//
// Sessions are logically one-time use: the callback flow calls Get followed
// by a best-effort Delete. A Delete that fails leaves the session to expire
// by TTL, so the replay window is bounded by the configured TTL.
type SessionRepository interface {
	// Set persists the session under its id with the given TTL.
	Set(ctx context.Context, session AuthSession, ttl time.Duration) error

	// Get returns the session stored under id, or ErrSessionNotFound.
	Get(ctx context.Context, id uuid.UUID) (AuthSession, error)

	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
