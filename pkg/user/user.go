package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sau-dev/something-about-us/pkg/idp"
)

var (
	// ErrInvalidUsername marks a username that fails domain validation.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidEmail marks an email that fails domain validation.
	ErrInvalidEmail = errors.New("invalid email")
)

// Username is a validated value object: non-empty, at most 50 characters.
type Username struct {
	value string
}

// NewUsername validates and wraps a username. Invalid values are a casting
// error, never silently truncated.
func NewUsername(value string) (Username, error) {
	if value == "" || len(value) > 50 {
		return Username{}, fmt.Errorf("%w: %q", ErrInvalidUsername, value)
	}
	return Username{value: value}, nil
}

func (u Username) String() string {
	return u.value
}

// Email is a validated value object: non-empty, contains '@', at most
// 254 characters.
type Email struct {
	value string
}

// NewEmail validates and wraps an email address.
func NewEmail(value string) (Email, error) {
	if value == "" || !strings.Contains(value, "@") || len(value) > 254 {
		return Email{}, fmt.Errorf("%w: %q", ErrInvalidEmail, value)
	}
	return Email{value: value}, nil
}

func (e Email) String() string {
	return e.value
}

// SAUUser is a local user account resolved from an external identity.
// Exactly one row exists per (idp, idp_uid) pair.
type SAUUser struct {
	ID        uuid.UUID
	Username  *Username
	Email     *Email
	Idp       idp.Idp
	IdpUID    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
