package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/handlers/middleware"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
)

const (
	APIPrefix             = "/api/v1/auth"
	defaultRequestTimeout = 5 * time.Second
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Deadline of every request, defaultRequestTimeout if not set
	RequestTimeout time.Duration

	// Trust identity header set by API gateway
	TrustIdentityHeader bool
}

func NewRouter(cfg RouterConfig, authService authService, logger logger.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	withAuth := middleware.Authenticate(authService, cfg.TrustIdentityHeader)

	api := http.NewServeMux()

	api.Handle("POST /register", handleRegister(authService, logger))
	api.Handle("POST /login", handleLogin(authService, logger))
	api.Handle("GET /validate", handleValidate(authService))
	api.Handle("POST /refresh", handleRefresh(authService, logger))
	api.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	api.Handle("GET /captcha", handleCaptcha(authService, logger))
	api.Handle("POST /password/recovery", handlePasswordRecovery(authService, logger))
	api.Handle("POST /change-password-link", handleChangePassword(authService, logger))
	api.Handle("POST /change-email-link", withAuth(handleRequestEmailChange(authService, logger)))
	api.Handle("GET /confirm-email-change", handleConfirmEmailChange(authService, logger))

	root := http.NewServeMux()
	root.Handle(APIPrefix+"/", http.StripPrefix(APIPrefix, api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.Timeout(cfg.RequestTimeout),
	)

	return handler
}

type authService interface {
	// Has to return apperrors.ErrCaptchaInvalid, apperrors.ErrCredentialMismatch
	// or apperrors.ErrEmailAlreadyInUse if identity can't be registered
	Register(ctx context.Context, p auth.RegisterParams) (models.Identity, error)

	// Has to return apperrors.ErrInvalidCredentials if email unknown or password is wrong
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	ValidateToken(ctx context.Context, token string) (models.Claims, bool)

	// Has to return apperrors.ErrInvalidToken, apperrors.ErrTokenRevoked or apperrors.ErrTokenExpired
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)

	Logout(ctx context.Context, identityID uuid.UUID, accessToken string) error

	RequestPasswordReset(ctx context.Context, email string) error
	ConsumePasswordReset(ctx context.Context, token string, newPassword string) error
	RequestEmailChange(ctx context.Context, identityID uuid.UUID, newEmail string) error
	ConfirmEmailChange(ctx context.Context, token string) error

	NewCaptcha(ctx context.Context) (string, error)
}
