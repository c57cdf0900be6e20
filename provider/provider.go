// Package provider defines the storage backend used by memocache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the bytes previously passed to Set for a key, with no added metadata,
// re-encoding, or mutation. Stores that transform values internally (e.g.
// compression) must fully reverse the transform on Get.
//
// memocache frames every value it writes and treats foreign bytes under its
// keys as corruption. Share a store with other writers only under a distinct
// memocache namespace.
package provider

import (
	"context"
	"time"
)

// Provider is a byte store with TTLs. It must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. cost may be ignored when the store
	// is not cost-aware. ok=false means the store refused the write under
	// pressure; that is not an error.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// DefaultTTL is the store-wide TTL used when no override is configured.
	DefaultTTL() time.Duration

	// Close releases resources.
	Close(ctx context.Context) error
}
