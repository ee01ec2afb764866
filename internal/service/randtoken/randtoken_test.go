package randtoken

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		token, err := New()
		require.NoError(t, err)
		require.Len(t, token, DefaultBytes*2)

		_, err = hex.DecodeString(token)
		require.NoError(t, err, "token must be hex encoded")

		_, dup := seen[token]
		require.False(t, dup, "tokens must not repeat")
		seen[token] = struct{}{}
	}
}
