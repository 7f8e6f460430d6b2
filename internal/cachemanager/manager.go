// Package cachemanager provides the in-memory cache backing the resident
// chat set. Entries live for the whole session: there is no eviction, only
// explicit deletion when a chat is removed.
package cachemanager

import (
	"context"
	"time"
)

// NoExpiration keeps an entry resident until it is explicitly deleted.
const NoExpiration time.Duration = -1

// CacheManager is a generic keyed cache.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Keys(ctx context.Context) []K
	Flush(ctx context.Context) error
}
