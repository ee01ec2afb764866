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

type PasswordResetRepo struct {
	DB DBTX
}

func rowToPasswordResetToken(row pgx.CollectableRow) (models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := row.Scan(&t.ID, &t.IdentityID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Used)
	return t, err
}

const createPasswordResetToken = `-- name: CreatePasswordResetToken
INSERT INTO password_reset_tokens (id, identity_id, token, created_at, expires_at, used)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, identity_id, token, created_at, expires_at, used`

func (r *PasswordResetRepo) Create(ctx context.Context, token models.PasswordResetToken) (models.PasswordResetToken, error) {
	rows, _ := r.DB.Query(ctx, createPasswordResetToken, token.ID, token.IdentityID, token.Token, token.CreatedAt, token.ExpiresAt, token.Used)
	got, err := pgx.CollectOneRow(rows, rowToPasswordResetToken)
	if err != nil {
		return got, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

// Row stays locked till the end of transaction:
// concurrent consumers wait and then see the committed 'used' flag
const getPasswordResetTokenForUpdate = `-- name: GetPasswordResetTokenForUpdate
SELECT id, identity_id, token, created_at, expires_at, used
FROM password_reset_tokens
WHERE token = $1
FOR UPDATE`

func (r *PasswordResetRepo) GetForUpdate(ctx context.Context, token string) (models.PasswordResetToken, error) {
	rows, _ := r.DB.Query(ctx, getPasswordResetTokenForUpdate, token)
	got, err := pgx.CollectOneRow(rows, rowToPasswordResetToken)

	switch {
	case err == nil:
		return got, nil
	case errors.Is(err, pgx.ErrNoRows):
		return got, fmt.Errorf("repo error: %w", apperrors.ErrInvalidToken)
	default:
		return got, fmt.Errorf("db error: %w", err)
	}
}

const markPasswordResetTokenUsed = `-- name: MarkPasswordResetTokenUsed
UPDATE password_reset_tokens
SET used = TRUE
WHERE id = $1 AND NOT used`

// Mark token used
// Returns apperrors.ErrTokenAlreadyUsed if it was used already (or doesn't exist)
func (r *PasswordResetRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, markPasswordResetTokenUsed, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrTokenAlreadyUsed)
	}
	return nil
}

const purgePasswordResetTokens = `-- name: PurgePasswordResetTokens
DELETE FROM password_reset_tokens
WHERE expires_at < $1 OR used`

func (r *PasswordResetRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, purgePasswordResetTokens, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
