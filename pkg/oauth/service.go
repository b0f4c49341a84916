package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sau-dev/something-about-us/pkg/authsession"
	"github.com/sau-dev/something-about-us/pkg/idp"
)

// ErrProviderNotRegistered is returned when no adapter is registered for a
// provider. It is distinct from provider-level failures so callers can tell
// a routing mistake from a failed exchange.
var ErrProviderNotRegistered = errors.New("identity provider not registered")

// Service routes login, callback and user-id calls to the adapter
// registered for each provider. The registry is built once at construction
// and immutable afterwards, so the service is safe for concurrent use.
// New providers plug in here without touching the callback flow.
type Service struct {
	providers map[idp.Idp]Provider
}

// NewService builds the provider registry.
func NewService(providers map[idp.Idp]Provider) *Service {
	registry := make(map[idp.Idp]Provider, len(providers))
	for name, provider := range providers {
		registry[name] = provider
	}
	return &Service{providers: registry}
}

func (s *Service) provider(name idp.Idp) (Provider, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, name)
	}
	return provider, nil
}

// LoginCall delegates Login to the registered adapter.
func (s *Service) LoginCall(ctx context.Context, name idp.Idp) (string, authsession.AuthSession, error) {
	provider, err := s.provider(name)
	if err != nil {
		return "", authsession.AuthSession{}, err
	}
	return provider.Login(ctx)
}

// CallbackCall delegates the code exchange to the registered adapter.
func (s *Service) CallbackCall(ctx context.Context, name idp.Idp, code, pkceVerifier string) (string, error) {
	provider, err := s.provider(name)
	if err != nil {
		return "", err
	}
	return provider.Callback(ctx, code, pkceVerifier)
}

// GetUserIDCall delegates the profile fetch to the registered adapter.
func (s *Service) GetUserIDCall(ctx context.Context, name idp.Idp, accessToken string) (string, error) {
	provider, err := s.provider(name)
	if err != nil {
		return "", err
	}
	return provider.GetUserID(ctx, accessToken)
}
