package cachestore

import (
	"context"
)

// A miss is the empty string with a nil error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

func cacheKey(name, key string) string {
	return "cache/" + name + "/" + key
}
