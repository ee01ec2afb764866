package password

import (
	"errors"
	"fmt"
)

const (
	AlgBcrypt   = "bcrypt"
	AlgArgon2id = "argon2id"
)

var ErrMismatch = errors.New("password does not match")

// One-way password hasher
type Hasher interface {
	Hash(password string) (string, error)

	// Return ErrMismatch if password does not match the hash
	Compare(hashedPassword string, password string) error
}

// New returns hasher by algorithm name
func New(alg string) (Hasher, error) {
	switch alg {
	case "", AlgBcrypt:
		return BcryptHasher{}, nil
	case AlgArgon2id:
		return NewArgon2Hasher(DefaultArgon2Params), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", alg)
	}
}
