// Package randtoken generates unguessable opaque strings.
package randtoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Length in bytes of tokens generated by New
const DefaultBytes = 32

func Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("error while generating random bytes. Err: %w", err)
	}
	return b, nil
}

// New returns hex encoded DefaultBytes random bytes
func New() (string, error) {
	b, err := Bytes(DefaultBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
