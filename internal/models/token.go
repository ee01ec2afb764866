package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims carried by signed bearer token
type Claims struct {
	ID         string // jti
	IdentityID uuid.UUID
	Email      string // snapshot at issue time, access tokens only
	Kind       TokenKind
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

type RefreshToken struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	Token      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

type PasswordResetToken struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	Token      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Used       bool
}

type EmailChangeToken struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	Token      string
	NewEmail   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Used       bool
}
