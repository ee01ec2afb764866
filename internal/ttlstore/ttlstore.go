// Package ttlstore provides keyed values that expire on their own.
//
// Denylist and captcha codes are kept here. Redis backs multi-instance
// deployments, Memory is enough for a single instance and tests.
package ttlstore

import (
	"context"
	"time"
)

type Store interface {
	// Set value for key, it disappears after ttl
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Report whether the key is present and not expired
	Exists(ctx context.Context, key string) (bool, error)

	// Delete key and report whether it was present
	Delete(ctx context.Context, key string) (bool, error)
}
