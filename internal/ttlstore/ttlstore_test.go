package ttlstore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/testutil"
)

// Both implementations must behave the same
func testStore(t *testing.T, newStore func(t *testing.T) (Store, func(time.Duration))) {
	t.Run("set and exists", func(t *testing.T) {
		s, _ := newStore(t)

		err := s.Set(t.Context(), "key", "value", time.Minute)
		require.NoError(t, err)

		ok, err := s.Exists(t.Context(), "key")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Exists(t.Context(), "other")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		s, advance := newStore(t)
		require.NoError(t, s.Set(t.Context(), "key", "value", time.Minute))

		advance(59 * time.Second)
		ok, err := s.Exists(t.Context(), "key")
		require.NoError(t, err)
		require.True(t, ok, "must exist before ttl elapsed")

		advance(2 * time.Second)
		ok, err = s.Exists(t.Context(), "key")
		require.NoError(t, err)
		require.False(t, ok, "must expire after ttl elapsed")
	})

	t.Run("delete reports presence", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(t.Context(), "key", "value", time.Minute))

		deleted, err := s.Delete(t.Context(), "key")
		require.NoError(t, err)
		require.True(t, deleted)

		deleted, err = s.Delete(t.Context(), "key")
		require.NoError(t, err)
		require.False(t, deleted, "second delete must report nothing was there")
	})

	t.Run("delete expired reports absence", func(t *testing.T) {
		s, advance := newStore(t)
		require.NoError(t, s.Set(t.Context(), "key", "value", time.Second))
		advance(2 * time.Second)

		deleted, err := s.Delete(t.Context(), "key")

		require.NoError(t, err)
		require.False(t, deleted)
	})

	t.Run("reject not positive ttl", func(t *testing.T) {
		s, _ := newStore(t)

		err := s.Set(t.Context(), "key", "value", 0)

		require.Error(t, err)
	})

	t.Run("concurrent delete wins once", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(t.Context(), "key", "value", time.Minute))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, err := s.Delete(t.Context(), "key"); err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, wins.Load())
	})
}

func TestMemory(t *testing.T) {
	testStore(t, func(t *testing.T) (Store, func(time.Duration)) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		s := NewMemory()
		s.now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		return s, func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		}
	})

	t.Run("sweep drops expired entries", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := NewMemory()
		s.now = func() time.Time { return now }
		require.NoError(t, s.Set(t.Context(), "stale", "v", time.Second))
		now = now.Add(time.Minute)

		for range sweepEvery {
			require.NoError(t, s.Set(t.Context(), "fresh", "v", time.Hour))
		}

		require.NotContains(t, s.entries, "stale")
		require.Contains(t, s.entries, "fresh")
	})
}

func TestRedis(t *testing.T) {
	testStore(t, func(t *testing.T) (Store, func(time.Duration)) {
		rs := testutil.StartRedis(t)
		s, err := NewRedis(rs.Client)
		require.NoError(t, err)
		return s, rs.Server.FastForward
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewRedis(nil)
		require.Error(t, err)
	})
}
