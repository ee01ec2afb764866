package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func mustCreateIdentity(t *testing.T, tx pgx.Tx, email string) models.Identity {
	t.Helper()

	identity, err := (&IdentityRepo{DB: tx}).Create(t.Context(), email, "hash")
	require.NoError(t, err)
	return identity
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newToken := func(identityID uuid.UUID, value string, expiresAt time.Time) models.RefreshToken {
		return models.RefreshToken{
			ID:         uuid.New(),
			IdentityID: identityID,
			Token:      value,
			CreatedAt:  mustParseTime("2024-01-01 19:00:01Z"),
			ExpiresAt:  expiresAt,
		}
	}
	farFuture := mustParseTime("2200-01-01 03:00:02Z")

	t.Run("create token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			identity := mustCreateIdentity(t, tx, "a@example.com")
			token := newToken(identity.ID, "secret-token", farFuture)

			got, err := repo.Create(t.Context(), token)

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, identity.ID, got.IdentityID)
			require.Equal(t, "secret-token", got.Token)
			require.WithinDuration(t, token.CreatedAt, got.CreatedAt, time.Microsecond)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Microsecond)
			require.False(t, got.Revoked)
		})
	})

	t.Run("token value is unique", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			identity := mustCreateIdentity(t, tx, "a@example.com")
			_, err := repo.Create(t.Context(), newToken(identity.ID, "secret-token", farFuture))
			require.NoError(t, err)

			_, err = repo.Create(t.Context(), newToken(identity.ID, "secret-token", farFuture))

			require.Error(t, err)
		})
	})

	t.Run("get token ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			identity := mustCreateIdentity(t, tx, "a@example.com")
			token := newToken(identity.ID, "secret-token", farFuture)
			_, err := repo.Create(t.Context(), token)
			require.NoError(t, err)

			got, err := repo.Get(t.Context(), "secret-token")

			require.NoError(t, err)
			require.Equal(t, token.ID, got.ID)
			require.Equal(t, identity.ID, got.IdentityID)
			require.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, 0)
		})
	})

	t.Run("get not existed token", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}

			_, err := repo.Get(t.Context(), "not-existed")

			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	})

	t.Run("revoke all identity tokens", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			alice := mustCreateIdentity(t, tx, "alice@example.com")
			bob := mustCreateIdentity(t, tx, "bob@example.com")
			for _, v := range []string{"alice-1", "alice-2"} {
				_, err := repo.Create(t.Context(), newToken(alice.ID, v, farFuture))
				require.NoError(t, err)
			}
			_, err := repo.Create(t.Context(), newToken(bob.ID, "bob-1", farFuture))
			require.NoError(t, err)

			count, err := repo.RevokeAll(t.Context(), alice.ID)

			require.NoError(t, err)
			require.EqualValues(t, 2, count)
			for _, v := range []string{"alice-1", "alice-2"} {
				got, err := repo.Get(t.Context(), v)
				require.NoError(t, err)
				require.True(t, got.Revoked, "token %s must be revoked", v)
			}
			got, err := repo.Get(t.Context(), "bob-1")
			require.NoError(t, err)
			require.False(t, got.Revoked, "other identity tokens must stay active")
		})
	})

	t.Run("revoke all is idempotent", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			identity := mustCreateIdentity(t, tx, "a@example.com")
			_, err := repo.Create(t.Context(), newToken(identity.ID, "secret-token", farFuture))
			require.NoError(t, err)

			_, err = repo.RevokeAll(t.Context(), identity.ID)
			require.NoError(t, err)
			count, err := repo.RevokeAll(t.Context(), identity.ID)

			require.NoError(t, err)
			require.EqualValues(t, 0, count)
		})
	})

	t.Run("purge expired and revoked", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := RefreshTokenRepo{DB: tx}
			alice := mustCreateIdentity(t, tx, "alice@example.com")
			bob := mustCreateIdentity(t, tx, "bob@example.com")
			_, err := repo.Create(t.Context(), newToken(alice.ID, "expired", mustParseTime("2024-01-02 00:00:00Z")))
			require.NoError(t, err)
			_, err = repo.Create(t.Context(), newToken(bob.ID, "revoked", farFuture))
			require.NoError(t, err)
			_, err = repo.RevokeAll(t.Context(), bob.ID)
			require.NoError(t, err)
			_, err = repo.Create(t.Context(), newToken(alice.ID, "active", farFuture))
			require.NoError(t, err)

			count, err := repo.PurgeExpired(t.Context(), mustParseTime("2025-01-01 00:00:00Z"))

			require.NoError(t, err)
			require.EqualValues(t, 2, count)
			_, err = repo.Get(t.Context(), "active")
			require.NoError(t, err, "active token must survive purge")
			_, err = repo.Get(t.Context(), "expired")
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	})
}
