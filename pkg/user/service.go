package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sau-dev/something-about-us/pkg/idp"
)

// Service resolves external identities to local users.
type Service struct {
	repository Repository
}

// NewService creates the user resolution service.
func NewService(repository Repository) *Service {
	return &Service{repository: repository}
}

// GetOrCreateUser returns the local user for (provider, idpUID), creating
// one on first sight. Concurrent first logins for the same identity
// resolve to the single persisted row through the repository's
// insert-if-absent semantics.
func (s *Service) GetOrCreateUser(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error) {
	user, err := s.repository.GetByIdpAndIdpUID(ctx, provider, idpUID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return SAUUser{}, fmt.Errorf("failed to fetch user: %w", err)
	}

	user, err = s.repository.CreateByIdpAndIdpUID(ctx, provider, idpUID)
	if err != nil {
		return SAUUser{}, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("Created user for external identity", "idp", provider, "user_id", user.ID)
	return user, nil
}
