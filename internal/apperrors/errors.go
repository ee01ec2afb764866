package apperrors

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCredentialMismatch = errors.New("passwords do not match")
	ErrEmailAlreadyInUse  = errors.New("email is already in use")
	ErrCaptchaInvalid     = errors.New("captcha is invalid or expired")
	ErrIdentityNotFound   = errors.New("identity not found")

	ErrInvalidToken     = errors.New("token is invalid")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenAlreadyUsed = errors.New("token is already used")
	ErrTokenRevoked     = errors.New("token is revoked")

	ErrInternal = errors.New("internal failure")
)

// Machine readable error codes
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeCredentialMismatch = "CREDENTIAL_MISMATCH"
	CodeEmailAlreadyInUse  = "EMAIL_ALREADY_IN_USE"
	CodeCaptchaInvalid     = "CAPTCHA_INVALID"
	CodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenAlreadyUsed   = "TOKEN_ALREADY_USED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL_FAILURE"
)

type kind struct {
	err  error
	code string
}

// Checked in order: the first match wins
var kinds = []kind{
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrCredentialMismatch, CodeCredentialMismatch},
	{ErrEmailAlreadyInUse, CodeEmailAlreadyInUse},
	{ErrCaptchaInvalid, CodeCaptchaInvalid},
	{ErrIdentityNotFound, CodeIdentityNotFound},
	{ErrInvalidToken, CodeInvalidToken},
	{ErrTokenExpired, CodeTokenExpired},
	{ErrTokenAlreadyUsed, CodeTokenAlreadyUsed},
	{ErrTokenRevoked, CodeTokenRevoked},
	{context.DeadlineExceeded, CodeTimeout},
}

func match(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return kind{}, false
}

// Code returns stable machine readable code for the error.
// Anything not recognized is an internal failure.
func Code(err error) string {
	if k, ok := match(err); ok {
		return k.code
	}
	return CodeInternal
}

// Describe returns human readable description of the error kind.
// Wrapped causes are never exposed.
func Describe(err error) string {
	if k, ok := match(err); ok {
		if k.code == CodeTimeout {
			return "request timed out, try again later"
		}
		return k.err.Error()
	}
	return ErrInternal.Error()
}

// IsKnown reports whether the error belongs to the business taxonomy
// (so it must be surfaced as is and never masked as internal failure).
func IsKnown(err error) bool {
	_, ok := match(err)
	return ok
}
