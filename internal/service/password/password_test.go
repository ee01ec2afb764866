package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := BcryptHasher{}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt hash is 60 letters long")
		require.Equal(t, "$2a$", got[:4], "bcrypt hash should have prefix '$2a$'")
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("long passwords are not truncated", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		hash, err := h.Hash(long + "1")
		require.NoError(t, err)

		err = h.Compare(hash, long+"2")

		require.ErrorIs(t, err, ErrMismatch)
	})
}

func Test_Argon2Hasher(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(got, "$argon2id$v=19$m=8192,t=1,p=1$"), "unexpected hash format: %s", got)
	})

	t.Run("salt differs between hashes", func(t *testing.T) {
		first, err := h.Hash("password")
		require.NoError(t, err)
		second, err := h.Hash("password")
		require.NoError(t, err)

		require.NotEqual(t, first, second)
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		require.NoError(t, h.Compare(hash, "password"))
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		require.ErrorIs(t, h.Compare(hash, "wrong"), ErrMismatch)
	})

	t.Run("fail on malformed hash", func(t *testing.T) {
		tests := []string{
			"",
			"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=19$broken$c2FsdA$a2V5",
			"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		}

		for _, hash := range tests {
			err := h.Compare(hash, "password")
			require.Error(t, err, "hash %q must be rejected", hash)
			require.NotErrorIs(t, err, ErrMismatch)
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		alg     string
		wantErr bool
	}{
		{"", false},
		{AlgBcrypt, false},
		{AlgArgon2id, false},
		{"md5", true},
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			h, err := New(tt.alg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, h)
		})
	}

	t.Run("bcrypt by default", func(t *testing.T) {
		h, err := New("")

		require.NoError(t, err)
		require.IsType(t, BcryptHasher{}, h)
	})
}
