package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/printhub/internal/apperr"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, Config{LockTTL: time.Minute, ResultTTL: time.Hour}, nil), mr
}

func TestDoReplaysStoredResult(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "redeem-1", nil
	}

	res, replayed, err := s.Do(ctx, "redeem:p1", "key-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "redeem-1", res)
	assert.False(t, replayed)

	res, replayed, err = s.Do(ctx, "redeem:p1", "key-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "redeem-1", res)
	assert.True(t, replayed)
	assert.Equal(t, 1, calls)
}

func TestDoFailureReleasesLock(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, _, err := s.Do(ctx, "order:p1", "key-1", func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(s.lockKey("order:p1", "key-1")))

	res, replayed, err := s.Do(ctx, "order:p1", "key-1", func(context.Context) (string, error) { return "order-1", nil })
	require.NoError(t, err)
	assert.Equal(t, "order-1", res)
	assert.False(t, replayed)
}

func TestDoConcurrentKeyIsInProgress(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set(s.lockKey("resolve:admin", "key-1"), "1"))

	_, _, err := s.Do(context.Background(), "resolve:admin", "key-1", func(context.Context) (string, error) {
		t.Fatalf("fn must not run while the key is locked")
		return "", nil
	})
	assert.ErrorIs(t, err, apperr.ErrInProgress)
}

func TestDoScopesAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, _, err := s.Do(ctx, "redeem:p1", "same", func(context.Context) (string, error) { return "a", nil })
	require.NoError(t, err)
	b, replayed, err := s.Do(ctx, "redeem:p2", "same", func(context.Context) (string, error) { return "b", nil })
	require.NoError(t, err)

	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
	assert.False(t, replayed)
}

func TestDoResultExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Do(ctx, "redeem:p1", "key-1", func(context.Context) (string, error) { return "first", nil })
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	res, replayed, err := s.Do(ctx, "redeem:p1", "key-1", func(context.Context) (string, error) { return "second", nil })
	require.NoError(t, err)
	assert.Equal(t, "second", res)
	assert.False(t, replayed)
}

func TestDoWithoutKeyOrStorePassesThrough(t *testing.T) {
	s, _ := newTestStore(t)
	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "x", nil
	}

	_, _, _ = s.Do(context.Background(), "order:p1", "", fn)
	_, _, _ = s.Do(context.Background(), "order:p1", "", fn)

	var nilStore *Store
	_, replayed, err := nilStore.Do(context.Background(), "order:p1", "key", fn)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 3, calls)
}
