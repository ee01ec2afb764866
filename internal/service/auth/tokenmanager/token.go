package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	defaultSigningMethod   = "HS256"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Kind  models.TokenKind `json:"kind"`
	Email string           `json:"email,omitempty"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT HMAC algorithm: HS256, HS384 or HS512
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager signs and verifies bearer tokens. It never touches any store.
type TokenManager struct {
	key        []byte
	alg        jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, DefaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, DefaultRefreshTokenTTL)

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

func (m *TokenManager) TTL(kind models.TokenKind) time.Duration {
	if kind == models.TokenKindRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

// Issue signed token of the kind for the identity
// Email snapshot is put to access tokens only
func (m *TokenManager) Issue(identity models.Identity, kind models.TokenKind) (models.IssuedToken, error) {
	if kind != models.TokenKindAccess && kind != models.TokenKindRefresh {
		return models.IssuedToken{}, fmt.Errorf("unknown token kind %q", kind)
	}

	// JWT keeps seconds only, so truncate to have the same expiry in token and in db
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.TTL(kind))

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: kind,
	}
	if kind == models.TokenKindAccess {
		claims.Email = identity.Email
	}

	signed, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", kind, err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify token signature, structure and expiry
// Any failure is reported as apperrors.ErrInvalidToken
func (m *TokenManager) Verify(token string) (models.Claims, error) {
	claims := &tokenClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}

	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Claims{}, fmt.Errorf("%w: malformed subject", apperrors.ErrInvalidToken)
	}
	if claims.Kind != models.TokenKindAccess && claims.Kind != models.TokenKindRefresh {
		return models.Claims{}, fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidToken, claims.Kind)
	}

	result := models.Claims{
		ID:         claims.ID,
		IdentityID: identityID,
		Email:      claims.Email,
		Kind:       claims.Kind,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}

	return result, nil
}
