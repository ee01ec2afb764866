package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

type tokenIssuer interface {
	Issue(identity models.Identity, kind models.TokenKind) (models.IssuedToken, error)
}

// Ledger keeps issued refresh tokens. Tokens are revoked by flag and deleted only by purge.
type Ledger struct {
	storage repository.Storage
	tokens  tokenIssuer
	now     func() time.Time
}

func NewLedger(storage repository.Storage, tokens tokenIssuer) *Ledger {
	return &Ledger{
		storage: storage,
		tokens:  tokens,
		now:     time.Now,
	}
}

// Issue refresh token for identity and persist it
func (l *Ledger) IssueFor(ctx context.Context, identity models.Identity) (models.RefreshToken, error) {
	issued, err := l.tokens.Issue(identity, models.TokenKindRefresh)
	if err != nil {
		return models.RefreshToken{}, err
	}

	record, err := l.storage.Refresh().Create(ctx, models.RefreshToken{
		ID:         uuid.New(),
		IdentityID: identity.ID,
		Token:      issued.Value,
		CreatedAt:  l.now(),
		ExpiresAt:  issued.ExpiresAt,
		Revoked:    false,
	})
	if err != nil {
		return record, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return record, nil
}

// Find token that may still be exchanged for access token
// Returns apperrors.ErrInvalidToken if token unknown,
// apperrors.ErrTokenRevoked if revoked and apperrors.ErrTokenExpired if expired
func (l *Ledger) FindActive(ctx context.Context, token string) (models.RefreshToken, error) {
	record, err := l.storage.Refresh().Get(ctx, token)
	if err != nil {
		return record, err
	}

	switch {
	case record.Revoked:
		return record, apperrors.ErrTokenRevoked
	case record.ExpiresAt.Before(l.now()):
		return record, apperrors.ErrTokenExpired
	}

	return record, nil
}

// Revoke every refresh token of the identity. No-op if there is none.
func (l *Ledger) RevokeAll(ctx context.Context, identityID uuid.UUID) error {
	_, err := l.storage.Refresh().RevokeAll(ctx, identityID)
	if err != nil {
		return fmt.Errorf("error while revoking refresh tokens. Err: %w", err)
	}
	return nil
}

// Delete expired or revoked tokens
func (l *Ledger) PurgeExpired(ctx context.Context) (int64, error) {
	return l.storage.Refresh().PurgeExpired(ctx, l.now())
}
