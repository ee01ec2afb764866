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

type EmailChangeRepo struct {
	DB DBTX
}

func rowToEmailChangeToken(row pgx.CollectableRow) (models.EmailChangeToken, error) {
	var t models.EmailChangeToken
	err := row.Scan(&t.ID, &t.IdentityID, &t.Token, &t.NewEmail, &t.CreatedAt, &t.ExpiresAt, &t.Used)
	return t, err
}

const createEmailChangeToken = `-- name: CreateEmailChangeToken
INSERT INTO email_change_tokens (id, identity_id, token, new_email, created_at, expires_at, used)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, identity_id, token, new_email, created_at, expires_at, used`

func (r *EmailChangeRepo) Create(ctx context.Context, token models.EmailChangeToken) (models.EmailChangeToken, error) {
	rows, _ := r.DB.Query(ctx, createEmailChangeToken, token.ID, token.IdentityID, token.Token, token.NewEmail, token.CreatedAt, token.ExpiresAt, token.Used)
	got, err := pgx.CollectOneRow(rows, rowToEmailChangeToken)
	if err != nil {
		return got, fmt.Errorf("db error: %w", err)
	}
	return got, nil
}

const getEmailChangeTokenForUpdate = `-- name: GetEmailChangeTokenForUpdate
SELECT id, identity_id, token, new_email, created_at, expires_at, used
FROM email_change_tokens
WHERE token = $1
FOR UPDATE`

func (r *EmailChangeRepo) GetForUpdate(ctx context.Context, token string) (models.EmailChangeToken, error) {
	rows, _ := r.DB.Query(ctx, getEmailChangeTokenForUpdate, token)
	got, err := pgx.CollectOneRow(rows, rowToEmailChangeToken)

	switch {
	case err == nil:
		return got, nil
	case errors.Is(err, pgx.ErrNoRows):
		return got, fmt.Errorf("repo error: %w", apperrors.ErrInvalidToken)
	default:
		return got, fmt.Errorf("db error: %w", err)
	}
}

const markEmailChangeTokenUsed = `-- name: MarkEmailChangeTokenUsed
UPDATE email_change_tokens
SET used = TRUE
WHERE id = $1 AND NOT used`

func (r *EmailChangeRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, markEmailChangeTokenUsed, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrTokenAlreadyUsed)
	}
	return nil
}

const purgeEmailChangeTokens = `-- name: PurgeEmailChangeTokens
DELETE FROM email_change_tokens
WHERE expires_at < $1 OR used`

func (r *EmailChangeRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, purgeEmailChangeTokens, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
