package memocache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/memocache/codec"
	"github.com/unkn0wn-root/memocache/internal/util"
	"github.com/unkn0wn-root/memocache/internal/wire"
	"github.com/unkn0wn-root/memocache/keys"
	pr "github.com/unkn0wn-root/memocache/provider"
	"github.com/unkn0wn-root/memocache/version"
)

type memo[V any] struct {
	ns             string
	provider       pr.Provider
	codec          c.Codec[V]
	deriver        *keys.Deriver
	version        version.Source
	log            Logger
	hooks          Hooks
	enabled        bool
	failOpen       bool
	ttl            time.Duration
	computeSetCost SetCostFunc
	group          *singleflight.Group // nil unless Coalesce
	now            func() time.Time
}

func newMemo[V any](opts Options[V]) (*memo[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("memocache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("memocache: codec is required")
	}

	m := &memo[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
		failOpen: opts.FailOpen,
		ttl:      opts.TTL,
		now:      time.Now,
	}

	// defaults
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.version = coalesce[version.Source](opts.Version, version.Build())

	if opts.Deriver != nil {
		m.deriver = opts.Deriver
	} else {
		d, err := keys.New(keys.WithAlgorithm(opts.HashAlgorithm), keys.WithEncoder(opts.KeyEncoder))
		if err != nil {
			return nil, fmt.Errorf("memocache: %w", err)
		}
		m.deriver = d
	}

	if opts.ComputeSetCost != nil {
		m.computeSetCost = opts.ComputeSetCost
	} else {
		m.computeSetCost = func(string, []byte) int64 { return 1 }
	}

	if opts.Coalesce {
		m.group = &singleflight.Group{}
	}

	return m, nil
}

func (m *memo[V]) Enabled() bool { return m.enabled }

func (m *memo[V]) Close(ctx context.Context) error {
	// Close version source first (best effort)
	if cl, ok := m.version.(version.Closer); ok {
		if err := cl.Close(ctx); err != nil {
			m.log.Warn("version source close failed", Fields{"err": err})
		}
	}
	return m.provider.Close(ctx)
}

func (m *memo[V]) Key(ctx context.Context, call Call) (string, error) {
	return m.derive(ctx, call)
}

func (m *memo[V]) Remember(ctx context.Context, call Call, fn func(context.Context) (V, error), opts ...CallOption) (V, error) {
	var zero V
	if fn == nil {
		return zero, ErrNilFunc
	}
	key, err := m.derive(ctx, call)
	if err != nil {
		return zero, err
	}
	if !m.enabled {
		return fn(ctx)
	}

	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	sk := util.StorageKey(m.ns, key)
	if m.group == nil {
		return m.load(ctx, sk, fn, co)
	}

	// The leader's ctx governs the shared lookup and computation.
	res, err, shared := m.group.Do(sk, func() (any, error) {
		return m.load(ctx, sk, fn, co)
	})
	if shared {
		m.hooks.Coalesced(sk)
		m.log.Debug("coalesced", Fields{"key": util.ShortKey(sk)})
	}
	v, _ := res.(V) // res is a nil interface when V is an interface type and fn returned nil
	return v, err
}

func (m *memo[V]) Forget(ctx context.Context, call Call) error {
	key, err := m.derive(ctx, call)
	if err != nil {
		return err
	}
	if !m.enabled {
		return nil
	}
	sk := util.StorageKey(m.ns, key)
	if err := m.provider.Del(ctx, sk); err != nil {
		m.hooks.BackendError("del", sk, err)
		return &BackendError{Op: "del", Key: sk, Err: err}
	}
	return nil
}

func (m *memo[V]) derive(ctx context.Context, call Call) (string, error) {
	ver, err := m.version.Version(ctx)
	if err != nil {
		m.hooks.VersionError(err)
		m.log.Error("version source failed", Fields{"owner": call.Owner, "op": call.Operation, "err": err})
		return "", &VersionError{Err: err}
	}
	return m.deriver.Derive(keys.Descriptor{
		Owner:     call.Owner,
		Operation: call.Operation,
		Args:      call.Args,
		Version:   ver,
	})
}

// load runs the read, compute, write sequence for one storage key.
// On a write failure the computed value is returned with the error.
func (m *memo[V]) load(ctx context.Context, sk string, fn func(context.Context) (V, error), co callOptions) (V, error) {
	var zero V
	v, ok, err := m.lookup(ctx, sk)
	if err != nil {
		return zero, err
	}
	if ok {
		return v, nil
	}

	m.hooks.Miss(sk)
	m.log.Debug("miss", Fields{"key": util.ShortKey(sk)})

	v, err = fn(ctx)
	if err != nil {
		return zero, err
	}
	return v, m.store(ctx, sk, v, co)
}

func (m *memo[V]) lookup(ctx context.Context, sk string) (V, bool, error) {
	var zero V
	raw, ok, err := m.provider.Get(ctx, sk)
	if err != nil {
		m.hooks.BackendError("get", sk, err)
		if m.failOpen {
			m.log.Warn("provider Get failed; treating as miss", Fields{"key": util.ShortKey(sk), "err": err})
			return zero, false, nil
		}
		return zero, false, &BackendError{Op: "get", Key: sk, Err: err}
	}
	if !ok {
		return zero, false, nil
	}

	_, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		m.selfHeal(ctx, sk, "corrupt")
		return zero, false, nil
	}
	v, err := m.codec.Decode(payload)
	if err != nil {
		m.selfHeal(ctx, sk, "value_decode")
		return zero, false, nil
	}

	m.hooks.Hit(sk)
	m.log.Debug("hit", Fields{"key": util.ShortKey(sk)})
	return v, true, nil
}

func (m *memo[V]) store(ctx context.Context, sk string, v V, co callOptions) error {
	payload, err := m.codec.Encode(v)
	if err != nil {
		m.hooks.BackendError("encode", sk, err)
		return &BackendError{Op: "encode", Key: sk, Err: err}
	}

	wireb := wire.EncodeEntry(m.now().UnixNano(), payload)
	ttl := m.resolveTTL(co)
	ok, err := m.provider.Set(ctx, sk, wireb, m.computeSetCost(sk, wireb), ttl)
	if err != nil {
		m.hooks.BackendError("set", sk, err)
		if m.failOpen {
			m.log.Warn("provider Set failed; result not stored", Fields{"key": util.ShortKey(sk), "err": err})
			return nil
		}
		return &BackendError{Op: "set", Key: sk, Err: err}
	}
	if !ok {
		m.hooks.StoreRejected(sk)
		m.log.Debug("Set rejected by provider (pressure)", Fields{"key": util.ShortKey(sk)})
	}
	return nil
}

// resolveTTL: per-call override, then Options.TTL, then the provider default.
func (m *memo[V]) resolveTTL(co callOptions) time.Duration {
	if co.hasTTL {
		return co.ttl
	}
	if m.ttl != 0 {
		return m.ttl
	}
	return m.provider.DefaultTTL()
}

func (m *memo[V]) selfHeal(ctx context.Context, sk, reason string) {
	if err := m.provider.Del(ctx, sk); err != nil {
		m.log.Warn("self-heal delete failed", Fields{"key": util.ShortKey(sk), "reason": reason, "err": err})
	} else {
		m.log.Warn("self-healed entry", Fields{"key": util.ShortKey(sk), "reason": reason})
	}
	m.hooks.SelfHeal(sk, reason)
}
