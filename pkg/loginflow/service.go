package loginflow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sau-dev/something-about-us/pkg/authsession"
	"github.com/sau-dev/something-about-us/pkg/idp"
	"github.com/sau-dev/something-about-us/pkg/jwks"
	"github.com/sau-dev/something-about-us/pkg/oauth"
	"github.com/sau-dev/something-about-us/pkg/user"
)

var (
	// ErrSessionMissing is returned when the callback arrives without a
	// session cookie. The session is created on Login; without it the
	// callback cannot be tied to a login this service started.
	ErrSessionMissing = errors.New("auth session cookie not found")
	// ErrCSRFMismatch is returned when the state echoed by the provider
	// does not equal the token stored in the auth session.
	ErrCSRFMismatch = errors.New("csrf token mismatch")
)

// Service drives the third-party login flow from the first redirect to
// the issued access token. It owns the ordering of the callback checks;
// handlers only translate HTTP to CallbackRequest and back.
type Service struct {
	oauthService *oauth.Service
	sessions     authsession.SessionRepository
	users        *user.Service
	tokens       *jwks.Service
	sessionTTL   time.Duration
}

func NewService(
	oauthService *oauth.Service,
	sessions authsession.SessionRepository,
	users *user.Service,
	tokens *jwks.Service,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		oauthService: oauthService,
		sessions:     sessions,
		users:        users,
		tokens:       tokens,
		sessionTTL:   sessionTTL,
	}
}

// LoginResult carries the provider redirect target and the session the
// handler must set as a cookie before redirecting.
type LoginResult struct {
	AuthURL   string
	SessionID uuid.UUID
}

// Login builds the provider authorization URL and persists the auth
// session that the callback will be checked against.
func (s *Service) Login(ctx context.Context, provider idp.Idp) (LoginResult, error) {
	authURL, session, err := s.oauthService.LoginCall(ctx, provider)
	if err != nil {
		if errors.Is(err, oauth.ErrProviderNotRegistered) {
			return LoginResult{}, validationError(err)
		}
		return LoginResult{}, authError(fmt.Errorf("building authorization url: %w", err))
	}

	if err := s.sessions.Set(ctx, session, s.sessionTTL); err != nil {
		return LoginResult{}, internalError(fmt.Errorf("storing auth session: %w", err))
	}

	slog.Info("login started", "provider", provider, "session_id", session.ID)
	return LoginResult{AuthURL: authURL, SessionID: session.ID}, nil
}

// CallbackRequest is the provider callback reduced to what the flow
// needs. HasSession is false when the request carried no session cookie.
type CallbackRequest struct {
	SessionID  uuid.UUID
	HasSession bool
	Code       string
	State      string
}

// CallbackResult reports the issued token and whether the auth session
// was consumed. SessionConsumed is meaningful even on error: once true
// the cookie is dead and the handler should clear it.
type CallbackResult struct {
	AccessToken     string
	SessionConsumed bool
}

// Callback finishes the login. The checks run strictly in order: the
// session is fetched and consumed, the CSRF token is compared, and only
// then does the service talk to the provider. A callback whose state
// does not match never reaches the code exchange.
func (s *Service) Callback(ctx context.Context, provider idp.Idp, req CallbackRequest) (CallbackResult, error) {
	if !req.HasSession {
		return CallbackResult{}, authError(ErrSessionMissing)
	}

	session, err := s.consumeSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, authsession.ErrSessionNotFound) {
			return CallbackResult{}, authError(fmt.Errorf("auth session %s: %w", req.SessionID, err))
		}
		return CallbackResult{}, internalError(fmt.Errorf("fetching auth session: %w", err))
	}
	result := CallbackResult{SessionConsumed: true}

	if subtle.ConstantTimeCompare([]byte(session.CSRFToken), []byte(req.State)) != 1 {
		return result, authError(ErrCSRFMismatch)
	}

	accessToken, err := s.oauthService.CallbackCall(ctx, provider, req.Code, session.PKCEVerifier)
	if err != nil {
		if errors.Is(err, oauth.ErrProviderNotRegistered) {
			return result, validationError(err)
		}
		return result, authError(fmt.Errorf("exchanging authorization code: %w", err))
	}

	idpUID, err := s.oauthService.GetUserIDCall(ctx, provider, accessToken)
	if err != nil {
		return result, authError(fmt.Errorf("fetching provider profile: %w", err))
	}

	sauUser, err := s.users.GetOrCreateUser(ctx, provider, idpUID)
	if err != nil {
		return result, internalError(fmt.Errorf("resolving user: %w", err))
	}

	token, err := s.tokens.Issue(sauUser.ID)
	if err != nil {
		return result, internalError(fmt.Errorf("issuing access token: %w", err))
	}

	slog.Info("login completed", "provider", provider, "user_id", sauUser.ID)
	result.AccessToken = token
	return result, nil
}

// consumeSession fetches the session and deletes it so it cannot be
// replayed. Deletion is best effort; a session that survives a failed
// delete still dies with its TTL.
func (s *Service) consumeSession(ctx context.Context, id uuid.UUID) (authsession.AuthSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return authsession.AuthSession{}, err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		slog.Warn("failed to delete auth session", "session_id", id, "error", err)
	}
	return session, nil
}
