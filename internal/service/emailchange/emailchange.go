package emailchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/service/randtoken"
)

const DefaultTTL = time.Hour

type Config struct {
	// Lifetime of email change token, DefaultTTL if not set
	TTL time.Duration
}

// Confirmed email change
type Change struct {
	IdentityID uuid.UUID
	NewEmail   string
	ChangedAt  time.Time
}

// Manager issues and confirms single-use email change tokens
type Manager struct {
	storage repository.Storage
	ttl     time.Duration
	now     func() time.Time
}

func New(cfg Config, storage repository.Storage) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &Manager{
		storage: storage,
		ttl:     cfg.TTL,
		now:     time.Now,
	}
}

// Issue token carrying pending email
// Returns apperrors.ErrEmailAlreadyInUse if any not deleted identity holds the email
func (m *Manager) Request(ctx context.Context, identity models.Identity, newEmail string) (models.EmailChangeToken, error) {
	taken, err := m.storage.Identity().EmailTaken(ctx, newEmail)
	if err != nil {
		return models.EmailChangeToken{}, err
	}
	if taken {
		return models.EmailChangeToken{}, apperrors.ErrEmailAlreadyInUse
	}

	value, err := randtoken.New()
	if err != nil {
		return models.EmailChangeToken{}, err
	}

	now := m.now()
	token, err := m.storage.EmailChange().Create(ctx, models.EmailChangeToken{
		ID:         uuid.New(),
		IdentityID: identity.ID,
		Token:      value,
		NewEmail:   newEmail,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		Used:       false,
	})
	if err != nil {
		return token, fmt.Errorf("error while saving email change token. Err: %w", err)
	}

	return token, nil
}

// Confirm token: set pending email and revoke all refresh tokens of the owner.
// Email uniqueness is checked again inside the transaction, someone might have taken it since request.
//
// Errors: apperrors.ErrInvalidToken, apperrors.ErrTokenAlreadyUsed, apperrors.ErrTokenExpired,
// apperrors.ErrEmailAlreadyInUse
func (m *Manager) Confirm(ctx context.Context, token string) (Change, error) {
	var change Change

	err := m.storage.InTx(ctx, func(tx repository.Storage) error {
		record, err := tx.EmailChange().GetForUpdate(ctx, token)
		if err != nil {
			return err
		}

		now := m.now()
		switch {
		case record.Used:
			return apperrors.ErrTokenAlreadyUsed
		case record.ExpiresAt.Before(now):
			return apperrors.ErrTokenExpired
		}

		taken, err := tx.Identity().EmailTaken(ctx, record.NewEmail)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.ErrEmailAlreadyInUse
		}

		// Unique index catches confirmation racing with us
		if err := tx.Identity().SetEmail(ctx, record.IdentityID, record.NewEmail); err != nil {
			return err
		}
		if err := tx.EmailChange().MarkUsed(ctx, record.ID); err != nil {
			return err
		}
		if _, err := tx.Refresh().RevokeAll(ctx, record.IdentityID); err != nil {
			return err
		}

		change = Change{IdentityID: record.IdentityID, NewEmail: record.NewEmail, ChangedAt: now}
		return nil
	})

	return change, err
}

// Delete expired or used tokens
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.storage.EmailChange().PurgeExpired(ctx, m.now())
}
