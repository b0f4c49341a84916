package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sau-dev/something-about-us/pkg/idp"
)

// userRow mirrors the sau_users table.
type userRow struct {
	ID        uuid.UUID
	Username  sql.NullString
	Email     sql.NullString
	Idp       string
	IdpUID    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostgresRepository implements Repository on a pgx connection pool.
// Uniqueness of (idp, idp_uid) is enforced by the sau_users_idp_idp_uid_key
// constraint; concurrent creators race on the insert and the loser
// re-fetches the winner's row.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository over the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectUserQuery = `
SELECT id, username, email, idp, idp_uid, is_active, created_at, updated_at
FROM sau_users
WHERE idp = $1 AND idp_uid = $2`

const insertUserQuery = `
INSERT INTO sau_users (id, idp, idp_uid, is_active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, $4)
ON CONFLICT (idp, idp_uid) DO NOTHING
RETURNING id, username, email, idp, idp_uid, is_active, created_at, updated_at`

// GetByIdpAndIdpUID looks up a user by external identity.
func (r *PostgresRepository) GetByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error) {
	row := r.pool.QueryRow(ctx, selectUserQuery, provider.String(), idpUID)
	return scanUser(row)
}

// CreateByIdpAndIdpUID inserts a user row, re-fetching the existing row
// when the uniqueness constraint reports a concurrent insert.
func (r *PostgresRepository) CreateByIdpAndIdpUID(ctx context.Context, provider idp.Idp, idpUID string) (SAUUser, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return SAUUser{}, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, insertUserQuery, id, provider.String(), idpUID, now)
	user, err := scanUser(row)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return SAUUser{}, err
	}

	// ON CONFLICT DO NOTHING returned no row: the identity already exists.
	return r.GetByIdpAndIdpUID(ctx, provider, idpUID)
}

func scanUser(row pgx.Row) (SAUUser, error) {
	var stored userRow
	err := row.Scan(
		&stored.ID,
		&stored.Username,
		&stored.Email,
		&stored.Idp,
		&stored.IdpUID,
		&stored.IsActive,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return SAUUser{}, ErrUserNotFound
	}
	if err != nil {
		return SAUUser{}, fmt.Errorf("database error: %w", err)
	}
	return stored.toDomain()
}

// toDomain converts a row into the domain model. Stored values that fail
// domain validation surface as casting errors distinct from database errors.
func (row userRow) toDomain() (SAUUser, error) {
	provider, err := idp.Parse(row.Idp)
	if err != nil {
		return SAUUser{}, fmt.Errorf("failed to cast stored idp: %w", err)
	}

	var username *Username
	if row.Username.Valid {
		parsed, err := NewUsername(row.Username.String)
		if err != nil {
			return SAUUser{}, fmt.Errorf("failed to cast stored username: %w", err)
		}
		username = &parsed
	}

	var email *Email
	if row.Email.Valid {
		parsed, err := NewEmail(row.Email.String)
		if err != nil {
			return SAUUser{}, fmt.Errorf("failed to cast stored email: %w", err)
		}
		email = &parsed
	}

	return SAUUser{
		ID:        row.ID,
		Username:  username,
		Email:     email,
		Idp:       provider,
		IdpUID:    row.IdpUID,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
