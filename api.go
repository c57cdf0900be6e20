package memocache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/memocache/codec"
	"github.com/unkn0wn-root/memocache/keys"
	pr "github.com/unkn0wn-root/memocache/provider"
	"github.com/unkn0wn-root/memocache/version"
)

type SetCostFunc func(storageKey string, raw []byte) int64

// Memo is the provider-agnostic memoization API.
// V is the result type. Serialization is handled by a pluggable Codec[V].
type Memo[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Remember returns the stored result for call, or runs fn once, stores
	// its result and returns it. fn's error is returned unchanged and nothing
	// is stored.
	Remember(ctx context.Context, call Call, fn func(context.Context) (V, error), opts ...CallOption) (V, error)

	// Key returns the derived cache key for call (without namespace).
	Key(ctx context.Context, call Call) (string, error)

	// Forget deletes the stored result for call, if any.
	Forget(ctx context.Context, call Call) error
}

// Options tune the memoizer. Only Provider and Codec are required.
type Options[V any] struct {
	// Required
	Provider pr.Provider
	Codec    c.Codec[V]

	Namespace string         // optional prefix for storage keys. e.g. "app:prod"
	TTL       time.Duration  // 0 => Provider.DefaultTTL()
	Version   version.Source // nil => version.Build()

	HashAlgorithm string        // "" => keys.DefaultAlgorithm
	KeyEncoder    keys.Encoder  // nil => keys.Canonical
	Deriver       *keys.Deriver // overrides HashAlgorithm and KeyEncoder

	Logger         Logger      // if nil, NopLogger is used
	Hooks          Hooks       // if nil, NopHooks is used
	Disabled       bool        // compute on every call; keys are still derived
	Coalesce       bool        // share one computation among concurrent identical misses
	FailOpen       bool        // treat backend read errors as misses and swallow write errors
	ComputeSetCost SetCostFunc // default 1
}

func New[V any](opts Options[V]) (Memo[V], error) {
	return newMemo[V](opts)
}
