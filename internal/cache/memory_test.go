package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGetDel(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("payload"), time.Minute))
	payload, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), payload)

	require.NoError(t, c.Del(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheRateLimit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	for i := 0; i < 3; i++ {
		ok, err := c.CheckRateLimit(ctx, "provider", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "call %d within limit", i)
	}
	ok, err := c.CheckRateLimit(ctx, "provider", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth call exceeds the window")

	// other providers have their own window
	ok, _ = c.CheckRateLimit(ctx, "other", 3, time.Minute)
	assert.True(t, ok)
}
