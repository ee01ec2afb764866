package models

import (
	"time"

	"github.com/google/uuid"
)

type Identity struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsDeleted    bool // soft-deleted identities can't log in and don't hold their email
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
