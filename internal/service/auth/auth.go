package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/events"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/notify"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/service/emailchange"
	"github.com/nkiryanov/authkeeper/internal/service/password"
	"github.com/nkiryanov/authkeeper/internal/telemetry"
)

const (
	PasswordResetPath      = "/api/v1/auth/change-password-link"
	ConfirmEmailChangePath = "/api/v1/auth/confirm-email-change"

	// Password hashed on login for unknown emails, so both failures cost the same
	dummyPassword = "authkeeper-dummy-password"
)

type tokenCodec interface {
	Issue(identity models.Identity, kind models.TokenKind) (models.IssuedToken, error)
	Verify(token string) (models.Claims, error)
}

type refreshLedger interface {
	IssueFor(ctx context.Context, identity models.Identity) (models.RefreshToken, error)
	FindActive(ctx context.Context, token string) (models.RefreshToken, error)
	RevokeAll(ctx context.Context, identityID uuid.UUID) error
}

type denylist interface {
	Deny(ctx context.Context, token string, remaining time.Duration) error
	IsDenied(ctx context.Context, token string) (bool, error)
}

type recoveryManager interface {
	Request(ctx context.Context, identity models.Identity) (models.PasswordResetToken, error)
	Consume(ctx context.Context, token string, newPassword string) (uuid.UUID, error)
}

type emailChangeManager interface {
	Request(ctx context.Context, identity models.Identity, newEmail string) (models.EmailChangeToken, error)
	Confirm(ctx context.Context, token string) (emailchange.Change, error)
}

type captchaService interface {
	Generate(ctx context.Context) (string, error)
	Validate(ctx context.Context, code string) (bool, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, event events.Event)
}

type Config struct {
	// Public address of the service, used in links sent to users
	BaseURL string
}

// Collaborators of the service. All are required except Metrics and Logger.
type Deps struct {
	Storage     repository.Storage
	Hasher      password.Hasher
	Tokens      tokenCodec
	Ledger      refreshLedger
	Denylist    denylist
	Recovery    recoveryManager
	EmailChange emailChangeManager
	Captcha     captchaService
	Notifier    notify.Sender
	Events      eventEmitter
	Metrics     *telemetry.Metrics
	Logger      logger.Logger
}

// Service composes token stores and codec into public session operations
type Service struct {
	storage     repository.Storage
	hasher      password.Hasher
	tokens      tokenCodec
	ledger      refreshLedger
	denylist    denylist
	recovery    recoveryManager
	emailChange emailChangeManager
	captcha     captchaService
	notifier    notify.Sender
	events      eventEmitter
	metrics     *telemetry.Metrics
	logger      logger.Logger

	baseURL   string
	dummyHash string
	now       func() time.Time
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Storage == nil || deps.Hasher == nil || deps.Tokens == nil || deps.Ledger == nil ||
		deps.Denylist == nil || deps.Recovery == nil || deps.EmailChange == nil ||
		deps.Captcha == nil || deps.Notifier == nil || deps.Events == nil {
		return nil, errors.New("auth service dependencies must not be nil")
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}

	dummyHash, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("error while preparing dummy hash. Err: %w", err)
	}

	return &Service{
		storage:     deps.Storage,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		ledger:      deps.Ledger,
		denylist:    deps.Denylist,
		recovery:    deps.Recovery,
		emailChange: deps.EmailChange,
		captcha:     deps.Captcha,
		notifier:    deps.Notifier,
		events:      deps.Events,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With("component", "auth"),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		dummyHash:   dummyHash,
		now:         time.Now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterParams struct {
	Email                string
	Password             string
	PasswordConfirmation string
	CaptchaCode          string
	FirstName            string
	LastName             string
}

// Register new identity
// Errors: apperrors.ErrCaptchaInvalid, apperrors.ErrCredentialMismatch, apperrors.ErrEmailAlreadyInUse
func (s *Service) Register(ctx context.Context, p RegisterParams) (models.Identity, error) {
	ok, err := s.captcha.Validate(ctx, p.CaptchaCode)
	if err != nil {
		return models.Identity{}, err
	}
	if !ok {
		return models.Identity{}, apperrors.ErrCaptchaInvalid
	}

	if p.Password != p.PasswordConfirmation {
		return models.Identity{}, apperrors.ErrCredentialMismatch
	}

	email := normalizeEmail(p.Email)
	taken, err := s.storage.Identity().EmailTaken(ctx, email)
	if err != nil {
		return models.Identity{}, err
	}
	if taken {
		return models.Identity{}, apperrors.ErrEmailAlreadyInUse
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return models.Identity{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	// Unique index still guards against concurrent registration
	identity, err := s.storage.Identity().Create(ctx, email, hash)
	if err != nil {
		return models.Identity{}, err
	}

	s.events.Emit(ctx, events.Registered(events.IdentityRegistered{
		UserID:       identity.ID,
		Email:        identity.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		RegisteredAt: identity.CreatedAt,
	}))
	s.logger.Info("Identity registered", "identity_id", identity.ID)

	return identity, nil
}

// Login with email and password and get fresh token pair
// Unknown email and wrong password both fail with apperrors.ErrInvalidCredentials
func (s *Service) Login(ctx context.Context, email string, pwd string) (models.TokenPair, error) {
	identity, err := s.storage.Identity().GetActiveByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrIdentityNotFound):
		_ = s.hasher.Compare(s.dummyHash, pwd)
		s.metrics.Login(ctx, false)
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.TokenPair{}, err
	}

	if err := s.hasher.Compare(identity.PasswordHash, pwd); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			return models.TokenPair{}, fmt.Errorf("error while comparing password. Err: %w", err)
		}
		s.metrics.Login(ctx, false)
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	access, err := s.issueAccess(ctx, identity)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := s.ledger.IssueFor(ctx, identity)
	if err != nil {
		return models.TokenPair{}, err
	}
	s.metrics.TokenIssued(ctx, string(models.TokenKindRefresh))
	s.metrics.Login(ctx, true)

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: refresh.Token, ExpiresAt: refresh.ExpiresAt},
	}, nil
}

func (s *Service) issueAccess(ctx context.Context, identity models.Identity) (models.IssuedToken, error) {
	access, err := s.tokens.Issue(identity, models.TokenKindAccess)
	if err != nil {
		return access, err
	}
	s.metrics.TokenIssued(ctx, string(models.TokenKindAccess))
	return access, nil
}

// ValidateToken reports whether access token may be trusted and returns its claims.
// It never fails: any problem, denylist outage included, makes the token invalid.
func (s *Service) ValidateToken(ctx context.Context, token string) (models.Claims, bool) {
	if token == "" {
		return models.Claims{}, false
	}

	denied, err := s.denylist.IsDenied(ctx, token)
	if err != nil {
		s.metrics.DenylistFailure(ctx)
		s.logger.Error("Failed to check denylist, token rejected", "error", err)
		return models.Claims{}, false
	}
	if denied {
		return models.Claims{}, false
	}

	claims, err := s.tokens.Verify(token)
	if err != nil || claims.Kind != models.TokenKindAccess {
		return models.Claims{}, false
	}

	return claims, true
}

// Refresh issues new access token. Refresh token is not rotated: the same one is returned.
// Errors: apperrors.ErrInvalidToken, apperrors.ErrTokenRevoked, apperrors.ErrTokenExpired
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	record, err := s.ledger.FindActive(ctx, refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}

	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}
	if claims.Kind != models.TokenKindRefresh || claims.IdentityID != record.IdentityID {
		return models.TokenPair{}, apperrors.ErrInvalidToken
	}

	identity, err := s.storage.Identity().GetByID(ctx, record.IdentityID)
	if err != nil {
		return models.TokenPair{}, err
	}
	if identity.IsDeleted {
		return models.TokenPair{}, apperrors.ErrInvalidToken
	}

	access, err := s.issueAccess(ctx, identity)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: record.Token, ExpiresAt: record.ExpiresAt},
	}, nil
}

// Logout revokes every refresh token of the identity and denies access token if given.
// Denying is best-effort: only revocation failure fails the logout.
func (s *Service) Logout(ctx context.Context, identityID uuid.UUID, accessToken string) error {
	if err := s.ledger.RevokeAll(ctx, identityID); err != nil {
		return err
	}

	if accessToken == "" {
		return nil
	}

	// Token already invalid has nothing left to deny
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return nil
	}

	if err := s.denylist.Deny(ctx, accessToken, claims.ExpiresAt.Sub(s.now())); err != nil {
		s.metrics.DenylistFailure(ctx)
		s.logger.Warn("Failed to deny access token on logout", "identity_id", identityID, "error", err)
	}

	return nil
}

func (s *Service) link(path string, token string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(token)
}

// Send password reset link to the identity email
// Errors: apperrors.ErrIdentityNotFound
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	identity, err := s.storage.Identity().GetActiveByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	token, err := s.recovery.Request(ctx, identity)
	if err != nil {
		return err
	}

	err = s.notifier.Send(ctx, identity.Email, notify.TemplatePasswordReset, map[string]string{
		notify.ParamLink: s.link(PasswordResetPath, token.Token),
	})
	if err != nil {
		return fmt.Errorf("error while sending password reset link. Err: %w", err)
	}

	return nil
}

// Set new password using reset token. Every session of the identity is revoked.
// Errors: apperrors.ErrInvalidToken, apperrors.ErrTokenAlreadyUsed, apperrors.ErrTokenExpired
func (s *Service) ConsumePasswordReset(ctx context.Context, token string, newPassword string) error {
	identityID, err := s.recovery.Consume(ctx, token, newPassword)
	if err != nil {
		return err
	}

	s.logger.Info("Password changed", "identity_id", identityID)
	return nil
}

// Send confirmation link to the new email
// Errors: apperrors.ErrIdentityNotFound, apperrors.ErrEmailAlreadyInUse
func (s *Service) RequestEmailChange(ctx context.Context, identityID uuid.UUID, newEmail string) error {
	identity, err := s.storage.Identity().GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.IsDeleted {
		return apperrors.ErrIdentityNotFound
	}

	token, err := s.emailChange.Request(ctx, identity, normalizeEmail(newEmail))
	if err != nil {
		return err
	}

	err = s.notifier.Send(ctx, token.NewEmail, notify.TemplateEmailChange, map[string]string{
		notify.ParamLink: s.link(ConfirmEmailChangePath, token.Token),
	})
	if err != nil {
		return fmt.Errorf("error while sending email change link. Err: %w", err)
	}

	return nil
}

// Confirm email change. Every session of the identity is revoked.
// Errors: apperrors.ErrInvalidToken, apperrors.ErrTokenAlreadyUsed, apperrors.ErrTokenExpired,
// apperrors.ErrEmailAlreadyInUse
func (s *Service) ConfirmEmailChange(ctx context.Context, token string) error {
	change, err := s.emailChange.Confirm(ctx, token)
	if err != nil {
		return err
	}

	s.events.Emit(ctx, events.Changed(events.IdentityChanged{
		UserID:    change.IdentityID,
		NewEmail:  change.NewEmail,
		ChangedAt: change.ChangedAt,
	}))
	s.logger.Info("Email changed", "identity_id", change.IdentityID)

	return nil
}

// Issue captcha code to pass on registration
func (s *Service) NewCaptcha(ctx context.Context) (string, error) {
	return s.captcha.Generate(ctx)
}
