package api

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sau-dev/something-about-us/pkg/authsession"
	"github.com/sau-dev/something-about-us/pkg/idp"
	"github.com/sau-dev/something-about-us/pkg/jwks"
	"github.com/sau-dev/something-about-us/pkg/loginflow"
	"github.com/sau-dev/something-about-us/pkg/oauth"
	"github.com/sau-dev/something-about-us/pkg/user"
)

type stubProvider struct {
	session     authsession.AuthSession
	authURL     string
	accessToken string
	idpUID      string
}

func (p *stubProvider) Login(ctx context.Context) (string, authsession.AuthSession, error) {
	return p.authURL, p.session, nil
}

func (p *stubProvider) Callback(ctx context.Context, code, pkceVerifier string) (string, error) {
	return p.accessToken, nil
}

func (p *stubProvider) GetUserID(ctx context.Context, accessToken string) (string, error) {
	return p.idpUID, nil
}

func newTestHandle(t *testing.T) (*Handle, *stubProvider) {
	t.Helper()

	session, err := authsession.New("test-pkce-verifier", "test-csrf-token")
	require.NoError(t, err)
	provider := &stubProvider{
		session:     session,
		authURL:     "https://github.com/login/oauth/authorize?state=test-csrf-token",
		accessToken: "gho_test_access_token",
		idpUID:      "583231",
	}

	privateKey, err := jwks.GenerateEd25519Key()
	require.NoError(t, err)
	kid := uuid.New()
	publicKey := privateKey.Public().(ed25519.PublicKey)
	issuer, err := jwks.NewIssuer("something-about-us", "sau-api", time.Hour, map[uuid.UUID]jwks.KeyPair{
		kid: {Kid: kid, PrivateKey: privateKey, PublicKey: publicKey, X: jwks.EncodePublicKeyX(publicKey)},
	})
	require.NoError(t, err)

	flow := loginflow.NewService(
		oauth.NewService(map[idp.Idp]oauth.Provider{idp.Github: provider}),
		authsession.NewInMemorySessionRepository(),
		user.NewService(user.NewInMemoryRepository()),
		jwks.NewService(issuer, kid),
		10*time.Minute,
	)

	cookies := authsession.NewCookieManager(authsession.CookiePolicy{
		TTL:      10 * time.Minute,
		Secure:   true,
		HttpOnly: true,
		SameSite: "lax",
	})
	return NewHandle(flow, cookies), provider
}

func sessionCookie(t *testing.T, response *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range response.Cookies() {
		if cookie.Name == authsession.CookieName {
			return cookie
		}
	}
	return nil
}

func TestLoginEndpoint(t *testing.T) {
	handle, provider := newTestHandle(t)

	t.Run("redirects and sets session cookie", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/github/login", nil)
		handle.Routes().ServeHTTP(recorder, request)

		response := recorder.Result()
		assert.Equal(t, http.StatusFound, response.StatusCode)
		assert.Equal(t, provider.authURL, response.Header.Get("Location"))

		cookie := sessionCookie(t, response)
		require.NotNil(t, cookie)
		assert.Equal(t, provider.session.ID.String(), cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)
	})

	t.Run("unknown provider is a 400", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/gitlab/login", nil)
		handle.Routes().ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Nil(t, sessionCookie(t, recorder.Result()))
	})
}

func TestCallbackEndpoint(t *testing.T) {
	login := func(t *testing.T, handle *Handle) *http.Cookie {
		t.Helper()
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/github/login", nil)
		handle.Routes().ServeHTTP(recorder, request)
		cookie := sessionCookie(t, recorder.Result())
		require.NotNil(t, cookie)
		return cookie
	}

	t.Run("returns access token and clears cookie", func(t *testing.T) {
		handle, provider := newTestHandle(t)
		cookie := login(t, handle)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet,
			"/github/callback?code=test-code&state="+provider.session.CSRFToken, nil)
		request.AddCookie(cookie)
		handle.Routes().ServeHTTP(recorder, request)

		response := recorder.Result()
		assert.Equal(t, http.StatusOK, response.StatusCode)

		var body struct {
			AccessToken string `json:"access_token"`
		}
		require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
		assert.NotEmpty(t, body.AccessToken)

		cleared := sessionCookie(t, response)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.Negative(t, cleared.MaxAge)
	})

	t.Run("missing code or state is a 400", func(t *testing.T) {
		handle, provider := newTestHandle(t)
		cookie := login(t, handle)

		for _, target := range []string{
			"/github/callback?state=" + provider.session.CSRFToken,
			"/github/callback?code=test-code",
		} {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, target, nil)
			request.AddCookie(cookie)
			handle.Routes().ServeHTTP(recorder, request)
			assert.Equal(t, http.StatusBadRequest, recorder.Code, target)
		}
	})

	t.Run("missing cookie is a 401 and cookie stays untouched", func(t *testing.T) {
		handle, provider := newTestHandle(t)
		login(t, handle)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet,
			"/github/callback?code=test-code&state="+provider.session.CSRFToken, nil)
		handle.Routes().ServeHTTP(recorder, request)

		response := recorder.Result()
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
		assert.Nil(t, sessionCookie(t, response), "no consumed session, nothing to clear")
	})

	t.Run("forged state is a 401 with generic body", func(t *testing.T) {
		handle, _ := newTestHandle(t)
		cookie := login(t, handle)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet,
			"/github/callback?code=test-code&state=forged-state", nil)
		request.AddCookie(cookie)
		handle.Routes().ServeHTTP(recorder, request)

		response := recorder.Result()
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
		assert.Equal(t, "authentication failed", body["error"])

		cleared := sessionCookie(t, response)
		require.NotNil(t, cleared, "consumed session must clear the cookie")
		assert.Empty(t, cleared.Value)
	})

	t.Run("malformed cookie value is a 401", func(t *testing.T) {
		handle, provider := newTestHandle(t)

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet,
			"/github/callback?code=test-code&state="+provider.session.CSRFToken, nil)
		request.AddCookie(&http.Cookie{Name: authsession.CookieName, Value: "not-a-uuid"})
		handle.Routes().ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
