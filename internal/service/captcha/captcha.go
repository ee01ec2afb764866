package captcha

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/nkiryanov/authkeeper/internal/ttlstore"
)

const (
	keyPrefix     = "captcha:"
	DefaultTTL    = 5 * time.Minute
	DefaultLength = 6

	// No 0/O and 1/I to keep codes readable
	alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type Config struct {
	TTL    time.Duration
	Length int
}

// Service issues single-use captcha codes
type Service struct {
	store  ttlstore.Store
	ttl    time.Duration
	length int
}

func New(cfg Config, store ttlstore.Store) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Length <= 0 {
		cfg.Length = DefaultLength
	}

	return &Service{store: store, ttl: cfg.TTL, length: cfg.Length}
}

// Generate new code and remember it for TTL
func (s *Service) Generate(ctx context.Context) (string, error) {
	code, err := randomCode(s.length)
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, keyPrefix+code, "1", s.ttl); err != nil {
		return "", fmt.Errorf("error while storing captcha. Err: %w", err)
	}

	return code, nil
}

// Validate code and burn it: the same code is never valid twice
func (s *Service) Validate(ctx context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false, nil
	}

	ok, err := s.store.Delete(ctx, keyPrefix+code)
	if err != nil {
		return false, fmt.Errorf("error while validating captcha. Err: %w", err)
	}
	return ok, nil
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))

	var b strings.Builder
	b.Grow(length)
	for range length {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("error while generating captcha. Err: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}
