package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/sau-dev/something-about-us/pkg/authsession"
)

// userAgent identifies this service on provider API calls. GitHub rejects
// requests without a User-Agent header.
const userAgent = "SomethingAboutUs"

// GithubConfig configures the GitHub OAuth2 adapter.
type GithubConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ResourceURL  string
	RedirectURL  string
	Timeout      time.Duration
}

// GithubProvider implements Provider against GitHub's OAuth2 and REST
// endpoints. Immutable after construction and safe for concurrent use.
type GithubProvider struct {
	config      *oauth2.Config
	resourceURL *url.URL
	httpClient  *http.Client
}

// NewGithubProvider validates the endpoint configuration and builds the
// adapter. Endpoint URLs must be absolute.
func NewGithubProvider(cfg GithubConfig) (*GithubProvider, error) {
	for name, raw := range map[string]string{
		"auth_url":     cfg.AuthURL,
		"token_url":    cfg.TokenURL,
		"redirect_url": cfg.RedirectURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("%w: invalid github %s %q", ErrProviderConfig, name, raw)
		}
	}

	resourceURL, err := url.Parse(cfg.ResourceURL)
	if err != nil || !resourceURL.IsAbs() {
		return nil, fmt.Errorf("%w: invalid github resource_url %q", ErrProviderConfig, cfg.ResourceURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GithubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		resourceURL: resourceURL,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Login generates a PKCE verifier and csrf state and returns the
// authorization URL embedding their public halves together with the
// session holding the secrets.
func (p *GithubProvider) Login(ctx context.Context) (string, authsession.AuthSession, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return "", authsession.AuthSession{}, fmt.Errorf("%w: %v", ErrProviderConfig, err)
	}

	session, err := authsession.New(verifier, state)
	if err != nil {
		return "", authsession.AuthSession{}, fmt.Errorf("%w: %v", ErrProviderConfig, err)
	}

	authURL := p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authURL, session, nil
}

// Callback performs the code-for-token exchange with GitHub.
func (p *GithubProvider) Callback(ctx context.Context, code, pkceVerifier string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeExchange, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrCodeExchange)
	}
	return token.AccessToken, nil
}

// githubUser is the part of GitHub's /user response this service reads.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GetUserID fetches the authenticated user's numeric GitHub id.
func (p *GithubProvider) GetUserID(ctx context.Context, accessToken string) (string, error) {
	userURL := p.resourceURL.JoinPath("user")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserInfoFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserInfoFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserInfoFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUserInfoFetch, resp.StatusCode)
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserInfoFetch, err)
	}
	if user.ID == 0 {
		return "", fmt.Errorf("%w: no user id in profile response", ErrUserInfoFetch)
	}

	return strconv.FormatInt(user.ID, 10), nil
}

// generateState produces a cryptographically random csrf state parameter.
func generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
