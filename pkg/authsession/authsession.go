package authsession

import (
	"fmt"

	"github.com/google/uuid"
)

// CookieName is the HTTP cookie carrying the auth session id between the
// login redirect and the provider callback.
const CookieName = "sau_auth_session"

// AuthSession is the per-login-attempt state bridging the redirect to the
// external provider and the callback. It is created once at login time and
// read exactly once at callback time. The verifier and csrf token are
// secrets: they are never logged and never leave the server.
type AuthSession struct {
	ID           uuid.UUID `json:"id"`
	PKCEVerifier string    `json:"pkce_verifier"`
	CSRFToken    string    `json:"csrf_token"`
}

// New creates an AuthSession with a fresh unguessable id.
func New(pkceVerifier, csrfToken string) (AuthSession, error) {
	if pkceVerifier == "" {
		return AuthSession{}, fmt.Errorf("pkce verifier cannot be empty")
	}
	if csrfToken == "" {
		return AuthSession{}, fmt.Errorf("csrf token cannot be empty")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return AuthSession{}, fmt.Errorf("failed to generate session id: %w", err)
	}

	return AuthSession{
		ID:           id,
		PKCEVerifier: pkceVerifier,
		CSRFToken:    csrfToken,
	}, nil
}
