package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photomemo/internal/apperr"
)

// drawConcurrently calls NextValue n times from n goroutines.
func drawConcurrently(t *testing.T, g Generator, n int) []int64 {
	t.Helper()
	ctx := context.Background()

	out := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], errs[i] = g.NextValue(ctx, PostNumber)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	return out
}

func assertDistinctRange(t *testing.T, vals []int64) {
	t.Helper()
	seen := map[int64]bool{}
	for _, v := range vals {
		assert.False(t, seen[v], "duplicate value %d", v)
		seen[v] = true
		assert.GreaterOrEqual(t, v, int64(1))
		assert.LessOrEqual(t, v, int64(len(vals)))
	}
}

func TestMemoryConcurrentValuesAreDistinct(t *testing.T) {
	assertDistinctRange(t, drawConcurrently(t, NewMemory(), 200))
}

func TestMemoryCountersAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a, err := m.NextValue(ctx, "a")
	require.NoError(t, err)
	b, err := m.NextValue(ctx, "b")
	require.NoError(t, err)
	a2, err := m.NextValue(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(1), b)
	assert.Equal(t, int64(2), a2)
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().NextValue(ctx, PostNumber)
	assert.ErrorIs(t, err, context.Canceled)
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	r := NewRedis(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisConcurrentValuesAreDistinct(t *testing.T) {
	r, mr := setupRedis(t)

	assertDistinctRange(t, drawConcurrently(t, r, 100))

	stored, err := mr.Get("photomemo:counter:" + PostNumber)
	require.NoError(t, err)
	assert.Equal(t, "100", stored)
}

func TestRedisContinuesFromStoredValue(t *testing.T) {
	r, mr := setupRedis(t)
	require.NoError(t, mr.Set("photomemo:counter:"+PostNumber, "41"))

	v, err := r.NextValue(context.Background(), PostNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestRedisUnreachableIsDependencyError(t *testing.T) {
	r, mr := setupRedis(t)
	mr.Close()

	_, err := r.NextValue(context.Background(), PostNumber)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDependency))
}
