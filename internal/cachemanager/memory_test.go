package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheManager_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, int]("test", NoExpiration, DefaultCleanupInterval)

	_, found := c.Get(ctx, "missing")
	require.False(t, found)

	c.Set(ctx, "a", 1, NoExpiration)
	v, found := c.Get(ctx, "a")
	require.True(t, found)
	require.Equal(t, 1, v)
}

func TestInMemoryCacheManager_NoExpirationPersists(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", 10*time.Millisecond, time.Hour)

	c.Set(ctx, "permanent", "stays", NoExpiration)
	c.Set(ctx, "ephemeral", "goes", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	_, found := c.Get(ctx, "permanent")
	require.True(t, found)
	_, found = c.Get(ctx, "ephemeral")
	require.False(t, found)
}

func TestInMemoryCacheManager_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, int]("test", NoExpiration, DefaultCleanupInterval)

	c.Set(ctx, "a", 1, NoExpiration)
	c.Set(ctx, "b", 2, NoExpiration)
	require.ElementsMatch(t, []string{"a", "b"}, c.Keys(ctx))

	require.NoError(t, c.Delete(ctx, "a", "never-existed"))
	require.ElementsMatch(t, []string{"b"}, c.Keys(ctx))

	require.NoError(t, c.Flush(ctx))
	require.Empty(t, c.Keys(ctx))
}

func TestInMemoryCacheManager_WrongTypeMisses(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, int]("test", NoExpiration, DefaultCleanupInterval)
	// Write through a second view of the same backing store with a different
	// value type.
	alias := &InMemoryCacheManager[string, string]{useCase: "alias", cache: c.cache}
	alias.Set(ctx, "a", "not an int", NoExpiration)

	_, found := c.Get(ctx, "a")
	require.False(t, found)
}
