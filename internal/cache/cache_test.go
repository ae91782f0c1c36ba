package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(2 * time.Second)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// ttl <= 0 не кэшируется
	require.NoError(t, m.Set(ctx, "z", []byte("v"), 0))
	_, ok, _ = m.Get(ctx, "z")
	assert.False(t, ok)
}

func TestMemoryGC(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.Set(ctx, k, []byte(k), time.Second))
	}
	now = now.Add(2 * time.Minute)
	_, _, _ = m.Get(ctx, "other")
	assert.Empty(t, m.entries)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "ADMIN", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, m, "role:7:p1", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "ADMIN", v)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("db down")
	_, err := Remember(ctx, m, "role:8:p1", time.Minute, func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	// nil-кэш — всегда load
	v, err := Remember[string](ctx, nil, "x", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", v)
	assert.Equal(t, 2, calls)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("conn refused")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("conn refused")
}

func TestRememberSurvivesBrokenCache(t *testing.T) {
	v, err := Remember(context.Background(), brokenCache{}, "k", time.Minute, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
