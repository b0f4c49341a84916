package loginflow

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sau-dev/something-about-us/pkg/authsession"
	"github.com/sau-dev/something-about-us/pkg/idp"
	"github.com/sau-dev/something-about-us/pkg/jwks"
	"github.com/sau-dev/something-about-us/pkg/oauth"
	"github.com/sau-dev/something-about-us/pkg/user"
)

// stubProvider records how far the flow reached into the provider.
type stubProvider struct {
	session       authsession.AuthSession
	authURL       string
	accessToken   string
	idpUID        string
	callbackErr   error
	userIDErr     error
	callbackCalls int
	userIDCalls   int
}

func (p *stubProvider) Login(ctx context.Context) (string, authsession.AuthSession, error) {
	return p.authURL, p.session, nil
}

func (p *stubProvider) Callback(ctx context.Context, code, pkceVerifier string) (string, error) {
	p.callbackCalls++
	if p.callbackErr != nil {
		return "", p.callbackErr
	}
	return p.accessToken, nil
}

func (p *stubProvider) GetUserID(ctx context.Context, accessToken string) (string, error) {
	p.userIDCalls++
	if p.userIDErr != nil {
		return "", p.userIDErr
	}
	return p.idpUID, nil
}

func newTestTokenService(t *testing.T) (*jwks.Service, *jwks.Issuer) {
	t.Helper()

	privateKey, err := jwks.GenerateEd25519Key()
	require.NoError(t, err)

	kid := uuid.New()
	publicKey := privateKey.Public().(ed25519.PublicKey)
	keys := map[uuid.UUID]jwks.KeyPair{
		kid: {
			Kid:        kid,
			PrivateKey: privateKey,
			PublicKey:  publicKey,
			X:          jwks.EncodePublicKeyX(publicKey),
		},
	}

	issuer, err := jwks.NewIssuer("something-about-us", "sau-api", time.Hour, keys)
	require.NoError(t, err)
	return jwks.NewService(issuer, kid), issuer
}

func newTestFlow(t *testing.T, provider *stubProvider) (*Service, authsession.SessionRepository, *jwks.Issuer) {
	t.Helper()

	oauthService := oauth.NewService(map[idp.Idp]oauth.Provider{
		idp.Github: provider,
	})
	sessions := authsession.NewInMemorySessionRepository()
	users := user.NewService(user.NewInMemoryRepository())
	tokens, issuer := newTestTokenService(t)

	return NewService(oauthService, sessions, users, tokens, 10*time.Minute), sessions, issuer
}

func newStubProvider(t *testing.T) *stubProvider {
	t.Helper()

	session, err := authsession.New("test-pkce-verifier", "test-csrf-token")
	require.NoError(t, err)
	return &stubProvider{
		session:     session,
		authURL:     "https://github.com/login/oauth/authorize?state=test-csrf-token",
		accessToken: "gho_test_access_token",
		idpUID:      "583231",
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores session and returns redirect target", func(t *testing.T) {
		provider := newStubProvider(t)
		flow, sessions, _ := newTestFlow(t, provider)

		result, err := flow.Login(ctx, idp.Github)
		require.NoError(t, err)
		assert.Equal(t, provider.authURL, result.AuthURL)
		assert.Equal(t, provider.session.ID, result.SessionID)

		stored, err := sessions.Get(ctx, result.SessionID)
		require.NoError(t, err)
		assert.Equal(t, provider.session.CSRFToken, stored.CSRFToken)
		assert.Equal(t, provider.session.PKCEVerifier, stored.PKCEVerifier)
	})

	t.Run("unregistered provider is a validation error", func(t *testing.T) {
		flow, _, _ := newTestFlow(t, newStubProvider(t))

		_, err := flow.Login(ctx, idp.Idp("gitlab"))
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassValidation, flowErr.Class)
		assert.ErrorIs(t, err, oauth.ErrProviderNotRegistered)
	})
}

func TestCallback(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, flow *Service) LoginResult {
		t.Helper()
		result, err := flow.Login(ctx, idp.Github)
		require.NoError(t, err)
		return result
	}

	t.Run("issues token for valid callback", func(t *testing.T) {
		provider := newStubProvider(t)
		flow, sessions, issuer := newTestFlow(t, provider)
		started := login(t, flow)

		result, err := flow.Callback(ctx, idp.Github, CallbackRequest{
			SessionID:  started.SessionID,
			HasSession: true,
			Code:       "test-code",
			State:      provider.session.CSRFToken,
		})
		require.NoError(t, err)
		assert.True(t, result.SessionConsumed)

		token, err := issuer.ParseToken(result.AccessToken)
		require.NoError(t, err)
		claims := token.Claims.(*jwt.RegisteredClaims)
		_, err = uuid.Parse(claims.Subject)
		assert.NoError(t, err, "subject must be the user id")

		_, err = sessions.Get(ctx, started.SessionID)
		assert.ErrorIs(t, err, authsession.ErrSessionNotFound, "session must be consumed")
	})

	t.Run("missing cookie fails regardless of code validity", func(t *testing.T) {
		provider := newStubProvider(t)
		flow, _, _ := newTestFlow(t, provider)
		login(t, flow)

		_, err := flow.Callback(ctx, idp.Github, CallbackRequest{
			HasSession: false,
			Code:       "test-code",
			State:      provider.session.CSRFToken,
		})
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassAuth, flowErr.Class)
		assert.ErrorIs(t, err, ErrSessionMissing)
		assert.Zero(t, provider.callbackCalls)
	})

	t.Run("unknown session id is an auth error", func(t *testing.T) {
		flow, _, _ := newTestFlow(t, newStubProvider(t))

		result, err := flow.Callback(ctx, idp.Github, CallbackRequest{
			SessionID:  uuid.New(),
			HasSession: true,
			Code:       "test-code",
			State:      "whatever",
		})
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassAuth, flowErr.Class)
		assert.ErrorIs(t, err, authsession.ErrSessionNotFound)
		assert.False(t, result.SessionConsumed)
	})

	t.Run("csrf mismatch rejected before code exchange", func(t *testing.T) {
		provider := newStubProvider(t)
		flow, _, _ := newTestFlow(t, provider)
		started := login(t, flow)

		result, err := flow.Callback(ctx, idp.Github, CallbackRequest{
			SessionID:  started.SessionID,
			HasSession: true,
			Code:       "test-code",
			State:      "forged-state",
		})
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassAuth, flowErr.Class)
		assert.ErrorIs(t, err, ErrCSRFMismatch)
		assert.True(t, result.SessionConsumed, "session is consumed even on mismatch")
		assert.Zero(t, provider.callbackCalls, "provider must not see a forged callback")
	})

	t.Run("session cannot be replayed", func(t *testing.T) {
		provider := newStubProvider(t)
		flow, _, _ := newTestFlow(t, provider)
		started := login(t, flow)

		request := CallbackRequest{
			SessionID:  started.SessionID,
			HasSession: true,
			Code:       "test-code",
			State:      provider.session.CSRFToken,
		}
		_, err := flow.Callback(ctx, idp.Github, request)
		require.NoError(t, err)

		_, err = flow.Callback(ctx, idp.Github, request)
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassAuth, flowErr.Class)
	})

	t.Run("rejected code exchange is an auth error", func(t *testing.T) {
		provider := newStubProvider(t)
		provider.callbackErr = oauth.ErrCodeExchange
		flow, _, _ := newTestFlow(t, provider)
		started := login(t, flow)

		result, err := flow.Callback(ctx, idp.Github, CallbackRequest{
			SessionID:  started.SessionID,
			HasSession: true,
			Code:       "bad-code",
			State:      provider.session.CSRFToken,
		})
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassAuth, flowErr.Class)
		assert.True(t, result.SessionConsumed)
		assert.Zero(t, provider.userIDCalls)
	})

	t.Run("failed profile fetch is an auth error", func(t *testing.T) {
		provider := newStubProvider(t)
		provider.userIDErr = oauth.ErrUserInfoFetch
		flow, _, _ := newTestFlow(t, provider)
		started := login(t, flow)

		_, err := flow.Callback(ctx, idp.Github, CallbackRequest{
			SessionID:  started.SessionID,
			HasSession: true,
			Code:       "test-code",
			State:      provider.session.CSRFToken,
		})
		var flowErr *Error
		require.ErrorAs(t, err, &flowErr)
		assert.Equal(t, ClassAuth, flowErr.Class)
	})

	t.Run("repeat login for same identity yields same subject", func(t *testing.T) {
		provider := newStubProvider(t)
		flow, _, issuer := newTestFlow(t, provider)

		subjects := make([]string, 0, 2)
		for i := 0; i < 2; i++ {
			started := login(t, flow)
			result, err := flow.Callback(ctx, idp.Github, CallbackRequest{
				SessionID:  started.SessionID,
				HasSession: true,
				Code:       "test-code",
				State:      provider.session.CSRFToken,
			})
			require.NoError(t, err)

			token, err := issuer.ParseToken(result.AccessToken)
			require.NoError(t, err)
			subjects = append(subjects, token.Claims.(*jwt.RegisteredClaims).Subject)
		}
		assert.Equal(t, subjects[0], subjects[1])
	})
}

func TestUserStoreFailureIsInternal(t *testing.T) {
	ctx := context.Background()

	provider := newStubProvider(t)
	oauthService := oauth.NewService(map[idp.Idp]oauth.Provider{idp.Github: provider})
	sessions := authsession.NewInMemorySessionRepository()
	users := user.NewService(failingUserRepository{})
	tokens, _ := newTestTokenService(t)
	flow := NewService(oauthService, sessions, users, tokens, 10*time.Minute)

	started, err := flow.Login(ctx, idp.Github)
	require.NoError(t, err)

	result, err := flow.Callback(ctx, idp.Github, CallbackRequest{
		SessionID:  started.SessionID,
		HasSession: true,
		Code:       "test-code",
		State:      provider.session.CSRFToken,
	})
	var flowErr *Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, ClassInternal, flowErr.Class)
	assert.True(t, result.SessionConsumed)
}

type failingUserRepository struct{}

var errStoreDown = errors.New("user store unavailable")

func (failingUserRepository) GetByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (user.SAUUser, error) {
	return user.SAUUser{}, errStoreDown
}

func (failingUserRepository) CreateByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (user.SAUUser, error) {
	return user.SAUUser{}, errStoreDown
}
