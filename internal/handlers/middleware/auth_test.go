package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/handlers/identityctx"
	"github.com/nkiryanov/authkeeper/internal/models"
)

// Allow to use a function as token validator
type validatorFunc func(ctx context.Context, token string) (models.Claims, bool)

func (f validatorFunc) ValidateToken(ctx context.Context, token string) (models.Claims, bool) {
	return f(ctx, token)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", tt.header)

			require.Equal(t, tt.expected, BearerToken(r))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	identityID := uuid.New()

	validator := validatorFunc(func(_ context.Context, token string) (models.Claims, bool) {
		if token != "good" {
			return models.Claims{}, false
		}
		return models.Claims{IdentityID: identityID, Kind: models.TokenKindAccess}, true
	})

	// Responds with principal found in context
	var got identityctx.Principal
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := identityctx.FromContext(r.Context())
		require.True(t, ok, "middleware must set principal or respond itself")
		got = p
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name         string
		trustGateway bool
		headers      map[string]string
		status       int
		expected     identityctx.Principal
	}{
		{
			name:     "valid bearer",
			headers:  map[string]string{"Authorization": "Bearer good"},
			status:   http.StatusNoContent,
			expected: identityctx.Principal{IdentityID: identityID, AccessToken: "good"},
		},
		{
			name:    "invalid bearer",
			headers: map[string]string{"Authorization": "Bearer bad", IdentityHeader: identityID.String()},
			status:  http.StatusUnauthorized,
		},
		{
			name:         "invalid bearer with trusted gateway header",
			trustGateway: true,
			headers:      map[string]string{"Authorization": "Bearer bad", IdentityHeader: identityID.String()},
			status:       http.StatusNoContent,
			expected:     identityctx.Principal{IdentityID: identityID, AccessToken: "bad"},
		},
		{
			name:         "invalid bearer with trusted malformed header",
			trustGateway: true,
			headers:      map[string]string{"Authorization": "Bearer bad", IdentityHeader: "42"},
			status:       http.StatusUnauthorized,
		},
		{
			name:         "gateway header trusted",
			trustGateway: true,
			headers:      map[string]string{IdentityHeader: identityID.String()},
			status:       http.StatusNoContent,
			expected:     identityctx.Principal{IdentityID: identityID},
		},
		{
			name:    "gateway header not trusted",
			headers: map[string]string{IdentityHeader: identityID.String()},
			status:  http.StatusUnauthorized,
		},
		{
			name:         "malformed gateway header",
			trustGateway: true,
			headers:      map[string]string{IdentityHeader: "42"},
			status:       http.StatusUnauthorized,
		},
		{
			name:   "anonymous",
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = identityctx.Principal{}
			r := httptest.NewRequest(http.MethodPost, "/logout", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			Authenticate(validator, tt.trustGateway)(handler).ServeHTTP(w, r)

			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.expected, got)
			if tt.status == http.StatusUnauthorized {
				require.JSONEq(t, `{"error": "INVALID_TOKEN", "message": "token is invalid"}`, w.Body.String())
			}
		})
	}
}
