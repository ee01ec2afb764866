package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topics other services subscribe to
const (
	TopicIdentityRegistered = "REGISTER_TOP"
	TopicIdentityChanged    = "ACCOUNT_CHANGES"
)

type Event struct {
	Topic   string
	Key     string // partitioning key, identity id
	Payload any    // marshaled as json
}

type IdentityRegistered struct {
	UserID       uuid.UUID `json:"userId"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type IdentityChanged struct {
	UserID    uuid.UUID `json:"userId"`
	NewEmail  string    `json:"newEmail"`
	ChangedAt time.Time `json:"changedAt"`
}

func Registered(e IdentityRegistered) Event {
	return Event{Topic: TopicIdentityRegistered, Key: e.UserID.String(), Payload: e}
}

func Changed(e IdentityChanged) Event {
	return Event{Topic: TopicIdentityChanged, Key: e.UserID.String(), Payload: e}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
