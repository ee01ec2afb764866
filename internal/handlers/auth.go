package handlers

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/handlers/identityctx"
	"github.com/nkiryanov/authkeeper/internal/handlers/middleware"
	"github.com/nkiryanov/authkeeper/internal/handlers/render"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
)

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func newTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{AccessToken: pair.Access.Value, RefreshToken: pair.Refresh.Value}
}

// Render service error. Errors outside of business taxonomy are logged.
func serviceError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	if !apperrors.IsKnown(err) {
		l.Error(msg, "error", err)
	}
	render.AppError(w, err)
}

// Token from query string or validation error response
func queryToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		render.FieldErrors(w, map[string]string{"token": "This field is required"})
		return "", false
	}
	return token, true
}

func handleRegister(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email       string `json:"email" validate:"required,email,max=254"`
		Password1   string `json:"password1" validate:"required,min=6,max=128"`
		Password2   string `json:"password2" validate:"required"`
		FirstName   string `json:"firstName" validate:"max=100"`
		LastName    string `json:"lastName" validate:"max=100"`
		CaptchaCode string `json:"captchaCode" validate:"required,notblank"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = s.Register(r.Context(), auth.RegisterParams{
			Email:                data.Email,
			Password:             data.Password1,
			PasswordConfirmation: data.Password2,
			CaptchaCode:          data.CaptchaCode,
			FirstName:            data.FirstName,
			LastName:             data.LastName,
		})
		if err != nil {
			serviceError(w, l, "Failed to register identity", err)
			return
		}

		render.Message(w, "Registration successful")
	})
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := s.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			serviceError(w, l, "Failed to login", err)
			return
		}

		render.JSON(w, newTokenPairResponse(pair))
	})
}

// Token is taken from query, bearer header is used if query is empty
func handleValidate(s authService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			token = middleware.BearerToken(r)
		}

		_, ok := s.ValidateToken(r.Context(), token)
		render.JSON(w, ok)
	})
}

func handleRefresh(s authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := s.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			serviceError(w, l, "Failed to refresh token", err)
			return
		}

		render.JSON(w, newTokenPairResponse(pair))
	})
}

func handleLogout(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := identityctx.FromContext(r.Context())
		if !ok {
			render.AppError(w, apperrors.ErrInvalidToken)
			return
		}

		if err := s.Logout(r.Context(), principal.IdentityID, principal.AccessToken); err != nil {
			serviceError(w, l, "Failed to logout", err)
			return
		}

		render.Message(w, "Logged out")
	})
}

func handleCaptcha(s authService, l logger.Logger) http.Handler {
	type response struct {
		CaptchaCode string `json:"captchaCode"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, err := s.NewCaptcha(r.Context())
		if err != nil {
			serviceError(w, l, "Failed to generate captcha", err)
			return
		}

		render.JSON(w, response{CaptchaCode: code})
	})
}

func handlePasswordRecovery(s authService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := s.RequestPasswordReset(r.Context(), data.Email); err != nil {
			serviceError(w, l, "Failed to request password reset", err)
			return
		}

		render.Message(w, "Password reset link sent")
	})
}

func handleChangePassword(s authService, l logger.Logger) http.Handler {
	type request struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := s.ConsumePasswordReset(r.Context(), data.Token, data.NewPassword); err != nil {
			serviceError(w, l, "Failed to change password", err)
			return
		}

		render.Message(w, "Password changed")
	})
}

func handleRequestEmailChange(s authService, l logger.Logger) http.Handler {
	type request struct {
		NewEmail string `json:"newEmail" validate:"required,email,max=254"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := identityctx.FromContext(r.Context())
		if !ok {
			render.AppError(w, apperrors.ErrInvalidToken)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := s.RequestEmailChange(r.Context(), principal.IdentityID, data.NewEmail); err != nil {
			serviceError(w, l, "Failed to request email change", err)
			return
		}

		render.Message(w, "Confirmation link sent to the new email")
	})
}

func handleConfirmEmailChange(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := queryToken(w, r)
		if !ok {
			return
		}

		if err := s.ConfirmEmailChange(r.Context(), token); err != nil {
			serviceError(w, l, "Failed to confirm email change", err)
			return
		}

		render.Message(w, "Email changed")
	})
}
