package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/models"
)

// Storage gives access to all repositories sharing the same connection or transaction
type Storage interface {
	Identity() IdentityRepo
	Refresh() RefreshTokenRepo
	PasswordReset() PasswordResetRepo
	EmailChange() EmailChangeRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type IdentityRepo interface {
	// Create identity
	// If not deleted identity with the email exists must return apperrors.ErrEmailAlreadyInUse
	Create(ctx context.Context, email string, passwordHash string) (models.Identity, error)

	// Get identity by id, deleted ones included
	// If identity not found must return apperrors.ErrIdentityNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Identity, error)

	// Get not deleted identity by email
	// If identity not found must return apperrors.ErrIdentityNotFound
	GetActiveByEmail(ctx context.Context, email string) (models.Identity, error)

	// Report whether any not deleted identity holds the email
	EmailTaken(ctx context.Context, email string) (bool, error)

	SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	// Set email
	// Must return apperrors.ErrEmailAlreadyInUse if another not deleted identity holds it
	SetEmail(ctx context.Context, id uuid.UUID, email string) error

	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type RefreshTokenRepo interface {
	Create(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Get token even if it revoked or expired
	// If token not found must return apperrors.ErrInvalidToken
	Get(ctx context.Context, token string) (models.RefreshToken, error)

	// Mark all identity tokens revoked, return count of affected tokens
	RevokeAll(ctx context.Context, identityID uuid.UUID) (int64, error)

	// Delete tokens expired before 'now' or revoked
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type PasswordResetRepo interface {
	Create(ctx context.Context, token models.PasswordResetToken) (models.PasswordResetToken, error)

	// Get token and lock it until the transaction ends
	// If token not found must return apperrors.ErrInvalidToken
	GetForUpdate(ctx context.Context, token string) (models.PasswordResetToken, error)

	MarkUsed(ctx context.Context, id uuid.UUID) error

	// Delete tokens expired before 'now' or used
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type EmailChangeRepo interface {
	Create(ctx context.Context, token models.EmailChangeToken) (models.EmailChangeToken, error)

	// Get token and lock it until the transaction ends
	// If token not found must return apperrors.ErrInvalidToken
	GetForUpdate(ctx context.Context, token string) (models.EmailChangeToken, error)

	MarkUsed(ctx context.Context, id uuid.UUID) error

	// Delete tokens expired before 'now' or used
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
