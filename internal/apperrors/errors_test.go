package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"invalid credentials", ErrInvalidCredentials, CodeInvalidCredentials},
		{"wrapped expired", fmt.Errorf("repo error: %w", ErrTokenExpired), CodeTokenExpired},
		{"deep wrapped used", fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrTokenAlreadyUsed)), CodeTokenAlreadyUsed},
		{"timeout", fmt.Errorf("db error: %w", context.DeadlineExceeded), CodeTimeout},
		{"internal sentinel", ErrInternal, CodeInternal},
		{"unknown", errors.New("connection refused"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestDescribe(t *testing.T) {
	t.Run("known kind hides wrapped cause", func(t *testing.T) {
		err := fmt.Errorf("select failed on host 10.0.0.1: %w", ErrIdentityNotFound)

		require.Equal(t, "identity not found", Describe(err))
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		require.Equal(t, "internal failure", Describe(errors.New("pq: secret detail")))
	})
}

func TestIsKnown(t *testing.T) {
	require.True(t, IsKnown(fmt.Errorf("x: %w", ErrTokenRevoked)))
	require.False(t, IsKnown(errors.New("boom")))
	require.False(t, IsKnown(ErrInternal))
}
