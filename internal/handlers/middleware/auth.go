package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/identityctx"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/models"
)

const (
	// Set by API gateway for already authenticated requests
	IdentityHeader = "X-User-Id"

	bearerScheme = "Bearer "
)

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (models.Claims, bool)
}

// Return bearer token from Authorization header or empty string
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerScheme):])
}

// Authenticate puts identityctx.Principal to request context or responds 401.
// Valid bearer access token wins. Otherwise gateway header is used if trustGateway is set,
// the raw bearer token (if any) is still passed on with it.
func Authenticate(v tokenValidator, trustGateway bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)

			if token != "" {
				if claims, ok := v.ValidateToken(r.Context(), token); ok {
					principal := identityctx.Principal{IdentityID: claims.IdentityID, AccessToken: token}
					next.ServeHTTP(w, r.WithContext(identityctx.New(r.Context(), principal)))
					return
				}
			}

			id, err := uuid.Parse(r.Header.Get(IdentityHeader))
			if !trustGateway || err != nil {
				render.AppError(w, apperrors.ErrInvalidToken)
				return
			}

			principal := identityctx.Principal{IdentityID: id, AccessToken: token}
			next.ServeHTTP(w, r.WithContext(identityctx.New(r.Context(), principal)))
		})
	}
}
