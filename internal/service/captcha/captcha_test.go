package captcha

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/testutil"
	"github.com/nkiryanov/authkeeper/internal/ttlstore"
)

func Test_Service(t *testing.T) {
	t.Parallel()

	newService := func(t *testing.T) (*Service, testutil.RedisServer) {
		rs := testutil.StartRedis(t)
		store, err := ttlstore.NewRedis(rs.Client)
		require.NoError(t, err)
		return New(Config{}, store), rs
	}

	t.Run("defaults", func(t *testing.T) {
		s := New(Config{}, ttlstore.NewMemory())

		require.Equal(t, DefaultTTL, s.ttl)
		require.Equal(t, DefaultLength, s.length)
	})

	t.Run("generate code", func(t *testing.T) {
		s, rs := newService(t)

		code, err := s.Generate(t.Context())

		require.NoError(t, err)
		require.Len(t, code, DefaultLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
		require.True(t, rs.Server.Exists("captcha:"+code))
		require.Equal(t, DefaultTTL, rs.Server.TTL("captcha:"+code))
	})

	t.Run("valid once", func(t *testing.T) {
		s, _ := newService(t)
		code, err := s.Generate(t.Context())
		require.NoError(t, err)

		ok, err := s.Validate(t.Context(), code)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Validate(t.Context(), code)
		require.NoError(t, err)
		require.False(t, ok, "code must be single use")
	})

	t.Run("case and spaces are ignored", func(t *testing.T) {
		s, _ := newService(t)
		code, err := s.Generate(t.Context())
		require.NoError(t, err)

		ok, err := s.Validate(t.Context(), " "+strings.ToLower(code)+" ")

		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("expired code", func(t *testing.T) {
		s, rs := newService(t)
		code, err := s.Generate(t.Context())
		require.NoError(t, err)

		rs.Server.FastForward(DefaultTTL + time.Second)

		ok, err := s.Validate(t.Context(), code)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown or empty code", func(t *testing.T) {
		s, _ := newService(t)

		for _, code := range []string{"", "   ", "ZZZZZZ"} {
			ok, err := s.Validate(t.Context(), code)
			require.NoError(t, err)
			require.False(t, ok, "code %q must be invalid", code)
		}
	})
}
