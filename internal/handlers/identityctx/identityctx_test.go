package identityctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIdentityCtx(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		p := Principal{IdentityID: uuid.New(), AccessToken: "token"}

		got, ok := FromContext(New(context.Background(), p))

		require.True(t, ok)
		require.Equal(t, p, got)
	})

	t.Run("empty context", func(t *testing.T) {
		_, ok := FromContext(context.Background())
		require.False(t, ok)
	})
}
