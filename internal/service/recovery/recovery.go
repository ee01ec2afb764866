package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/service/password"
	"github.com/nkiryanov/authkeeper/internal/service/randtoken"
)

const DefaultTTL = time.Hour

type Config struct {
	// Lifetime of reset token, DefaultTTL if not set
	TTL time.Duration
}

// Manager issues and consumes single-use password reset tokens
type Manager struct {
	storage repository.Storage
	hasher  password.Hasher
	ttl     time.Duration
	now     func() time.Time
}

func New(cfg Config, storage repository.Storage, hasher password.Hasher) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &Manager{
		storage: storage,
		hasher:  hasher,
		ttl:     cfg.TTL,
		now:     time.Now,
	}
}

// Issue reset token for identity
func (m *Manager) Request(ctx context.Context, identity models.Identity) (models.PasswordResetToken, error) {
	value, err := randtoken.New()
	if err != nil {
		return models.PasswordResetToken{}, err
	}

	now := m.now()
	token, err := m.storage.PasswordReset().Create(ctx, models.PasswordResetToken{
		ID:         uuid.New(),
		IdentityID: identity.ID,
		Token:      value,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		Used:       false,
	})
	if err != nil {
		return token, fmt.Errorf("error while saving reset token. Err: %w", err)
	}

	return token, nil
}

// Consume token and set new password for its owner.
// All refresh tokens of the owner are revoked in the same transaction.
//
// Errors: apperrors.ErrInvalidToken if token unknown,
// apperrors.ErrTokenAlreadyUsed if used (checked first), apperrors.ErrTokenExpired if expired.
func (m *Manager) Consume(ctx context.Context, token string, newPassword string) (uuid.UUID, error) {
	// Hash before the row is locked: hashing is slow on purpose
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while hashing password. Err: %w", err)
	}

	var identityID uuid.UUID
	err = m.storage.InTx(ctx, func(tx repository.Storage) error {
		record, err := tx.PasswordReset().GetForUpdate(ctx, token)
		if err != nil {
			return err
		}

		switch {
		case record.Used:
			return apperrors.ErrTokenAlreadyUsed
		case record.ExpiresAt.Before(m.now()):
			return apperrors.ErrTokenExpired
		}

		if err := tx.Identity().SetPasswordHash(ctx, record.IdentityID, hash); err != nil {
			return err
		}
		if err := tx.PasswordReset().MarkUsed(ctx, record.ID); err != nil {
			return err
		}
		if _, err := tx.Refresh().RevokeAll(ctx, record.IdentityID); err != nil {
			return err
		}

		identityID = record.IdentityID
		return nil
	})

	return identityID, err
}

// Delete expired or used tokens
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.storage.PasswordReset().PurgeExpired(ctx, m.now())
}
