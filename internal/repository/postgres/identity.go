package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type IdentityRepo struct {
	DB DBTX
}

const identityColumns = "id, email, password_hash, is_deleted, created_at, updated_at"

func rowToIdentity(row pgx.CollectableRow) (models.Identity, error) {
	var i models.Identity
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.IsDeleted, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Map single row result error to repository one
func identityErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("repo error: %w", apperrors.ErrIdentityNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("repo error: %w", apperrors.ErrEmailAlreadyInUse)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const createIdentity = `-- name: CreateIdentity
INSERT INTO identities (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING ` + identityColumns

func (r *IdentityRepo) Create(ctx context.Context, email string, passwordHash string) (models.Identity, error) {
	rows, _ := r.DB.Query(ctx, createIdentity, uuid.New(), email, passwordHash)
	identity, err := pgx.CollectOneRow(rows, rowToIdentity)
	return identity, identityErr(err)
}

const getIdentityByID = `-- name: GetIdentityByID
SELECT ` + identityColumns + `
FROM identities
WHERE id = $1`

func (r *IdentityRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Identity, error) {
	rows, _ := r.DB.Query(ctx, getIdentityByID, id)
	identity, err := pgx.CollectOneRow(rows, rowToIdentity)
	return identity, identityErr(err)
}

const getActiveIdentityByEmail = `-- name: GetActiveIdentityByEmail
SELECT ` + identityColumns + `
FROM identities
WHERE email = $1 AND NOT is_deleted`

func (r *IdentityRepo) GetActiveByEmail(ctx context.Context, email string) (models.Identity, error) {
	rows, _ := r.DB.Query(ctx, getActiveIdentityByEmail, email)
	identity, err := pgx.CollectOneRow(rows, rowToIdentity)
	return identity, identityErr(err)
}

const emailTaken = `-- name: EmailTaken
SELECT EXISTS (SELECT 1 FROM identities WHERE email = $1 AND NOT is_deleted)`

func (r *IdentityRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.DB.QueryRow(ctx, emailTaken, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

const setPasswordHash = `-- name: SetPasswordHash
UPDATE identities
SET password_hash = $2, updated_at = now()
WHERE id = $1
RETURNING id`

func (r *IdentityRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	rows, _ := r.DB.Query(ctx, setPasswordHash, id, passwordHash)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	return identityErr(err)
}

const setEmail = `-- name: SetEmail
UPDATE identities
SET email = $2, updated_at = now()
WHERE id = $1
RETURNING id`

func (r *IdentityRepo) SetEmail(ctx context.Context, id uuid.UUID, email string) error {
	rows, _ := r.DB.Query(ctx, setEmail, id, email)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	return identityErr(err)
}

const softDelete = `-- name: SoftDeleteIdentity
UPDATE identities
SET is_deleted = TRUE, updated_at = now()
WHERE id = $1
RETURNING id`

func (r *IdentityRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	rows, _ := r.DB.Query(ctx, softDelete, id)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	return identityErr(err)
}
