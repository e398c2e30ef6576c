// Package cache provides pluggable byte caching for rendered artifacts.
//
// Rendering a diagram means walking the relationship graph, serializing it,
// and invoking Graphviz; for unchanged inputs that work is identical every
// time, so the pipeline caches finished artifacts keyed by a hash of the
// trace data and the render request. Backends: [FileCache] for local CLI
// usage, [RedisCache] for the preview server, and [NullCache] to disable
// caching.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ArtifactKey builds the cache key for one rendered artifact. The key
// hashes the raw trace data together with every request parameter that
// shapes the output, so any change to either produces a distinct key.
func ArtifactKey(traceData []byte, format string, params ...string) string {
	parts := []any{Hash(traceData), format}
	for _, p := range params {
		parts = append(parts, p)
	}
	return hashKey("artifact", parts...)
}
