package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.IdentityID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Revoked)
	return t, err
}

const createRefreshToken = `-- name: CreateRefreshToken
INSERT INTO refresh_tokens (id, identity_id, token, created_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, identity_id, token, created_at, expires_at, revoked`

func (r *RefreshTokenRepo) Create(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, createRefreshToken, token.ID, token.IdentityID, token.Token, token.CreatedAt, token.ExpiresAt, token.Revoked)
	got, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return got, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

const getRefreshToken = `-- name: GetRefreshToken
SELECT id, identity_id, token, created_at, expires_at, revoked
FROM refresh_tokens
WHERE token = $1`

func (r *RefreshTokenRepo) Get(ctx context.Context, token string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getRefreshToken, token)
	got, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return got, nil
	case errors.Is(err, pgx.ErrNoRows):
		return got, fmt.Errorf("repo error: %w", apperrors.ErrInvalidToken)
	default:
		return got, fmt.Errorf("db error: %w", err)
	}
}

const revokeAllRefreshTokens = `-- name: RevokeAllRefreshTokens
UPDATE refresh_tokens
SET revoked = TRUE
WHERE identity_id = $1 AND NOT revoked`

func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, identityID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeAllRefreshTokens, identityID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const purgeRefreshTokens = `-- name: PurgeRefreshTokens
DELETE FROM refresh_tokens
WHERE expires_at < $1 OR revoked`

func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, purgeRefreshTokens, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
