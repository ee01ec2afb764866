package denylist

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/authkeeper/internal/ttlstore"
)

const keyPrefix = "blacklist:token:"

// Denylist rejects access tokens before their natural expiry
type Denylist struct {
	store ttlstore.Store
}

func New(store ttlstore.Store) *Denylist {
	return &Denylist{store: store}
}

// Deny token for its remaining lifetime. Tokens already expired are skipped.
func (d *Denylist) Deny(ctx context.Context, token string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}

	if err := d.store.Set(ctx, keyPrefix+token, "1", remaining); err != nil {
		return fmt.Errorf("error while denying token. Err: %w", err)
	}
	return nil
}

func (d *Denylist) IsDenied(ctx context.Context, token string) (bool, error) {
	denied, err := d.store.Exists(ctx, keyPrefix+token)
	if err != nil {
		return false, fmt.Errorf("error while checking denylist. Err: %w", err)
	}
	return denied, nil
}
