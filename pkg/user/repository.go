package user

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sau-dev/something-about-us/pkg/idp"
)

// ErrUserNotFound is returned by lookups with no matching user row.
var ErrUserNotFound = errors.New("user not found")

// Repository is the durable user store port.
//
// CreateByIdpAndIdpUID has insert-if-absent semantics: when a concurrent
// caller creates the same (idp, idp_uid) first, the existing row is
// returned instead of a duplicate. At most one user row ever exists per
// external identity.
type Repository interface {
	GetByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error)
	CreateByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error)
}

// InMemoryRepository implements Repository with a mutex-serialized map.
// The single lock provides the per-key exclusion that the Postgres
// implementation gets from its uniqueness constraint. For tests and dev.
type InMemoryRepository struct {
	mutex sync.Mutex
	users map[identityKey]SAUUser
}

type identityKey struct {
	provider idp.Idp
	idpUID   string
}

// NewInMemoryRepository creates an empty in-memory user store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[identityKey]SAUUser),
	}
}

// GetByIdpAndIdpUID looks up a user by external identity.
func (r *InMemoryRepository) GetByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, exists := r.users[identityKey{provider: provider, idpUID: idpUID}]
	if !exists {
		return SAUUser{}, ErrUserNotFound
	}
	return user, nil
}

// CreateByIdpAndIdpUID inserts a user for the external identity, returning
// the existing row when one already exists.
func (r *InMemoryRepository) CreateByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := identityKey{provider: provider, idpUID: idpUID}
	if existing, exists := r.users[key]; exists {
		return existing, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return SAUUser{}, err
	}

	now := time.Now().UTC()
	user := SAUUser{
		ID:        id,
		Idp:       provider,
		IdpUID:    idpUID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[key] = user
	return user, nil
}
