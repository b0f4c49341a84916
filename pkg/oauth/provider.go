package oauth

import (
	"context"
	"errors"

	"github.com/sau-dev/something-about-us/pkg/authsession"
)

// Provider-level failure kinds. Adapters wrap these so callers can
// distinguish configuration mistakes from exchange and profile failures
// without knowing the concrete provider.
var (
	// ErrProviderConfig marks URL-construction or configuration failures.
	ErrProviderConfig = errors.New("provider configuration error")

	// ErrCodeExchange marks failures of the code-for-token exchange:
	// network errors, provider-rejected codes, malformed responses.
	ErrCodeExchange = errors.New("authorization code exchange failed")

	// ErrUserInfoFetch marks failures of the authenticated profile fetch.
	ErrUserInfoFetch = errors.New("user info fetch failed")
)

// Provider is the capability set every external identity provider adapter
// implements. All operations are pure request/response with no state kept
// between calls, so one adapter instance is shared across requests.
type Provider interface {
	// Login builds the provider authorization URL carrying the PKCE
	// challenge and csrf state, plus the local session holding their
	// secret halves. It never performs network I/O.
	Login(ctx context.Context) (string, authsession.AuthSession, error)

	// Callback exchanges the authorization code for a provider access
	// token using the session's PKCE verifier. Codes are single-use:
	// failed exchanges are never retried.
	Callback(ctx context.Context, code, pkceVerifier string) (string, error)

	// GetUserID fetches the provider-side user id for the access token.
	GetUserID(ctx context.Context, accessToken string) (string, error)
}
