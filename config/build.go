package config

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/memocache"
	"github.com/unkn0wn-root/memocache/codec"
	"github.com/unkn0wn-root/memocache/keys"
	pr "github.com/unkn0wn-root/memocache/provider"
	"github.com/unkn0wn-root/memocache/provider/bigcache"
	"github.com/unkn0wn-root/memocache/provider/memory"
	"github.com/unkn0wn-root/memocache/provider/redis"
	"github.com/unkn0wn-root/memocache/provider/ristretto"
	"github.com/unkn0wn-root/memocache/version"
)

func (c RedisConfig) client() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	})
}

// NewProvider constructs the configured backend. The caller owns it.
func NewProvider(c ProviderConfig) (pr.Provider, error) {
	switch c.Kind {
	case "memory":
		return memory.New(memory.Config{
			DefaultTTL:      c.DefaultTTL,
			MaxEntries:      c.Memory.MaxEntries,
			CleanupInterval: c.Memory.CleanupInterval,
		}), nil
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: c.Ristretto.NumCounters,
			MaxCost:     c.Ristretto.MaxCost,
			BufferItems: c.Ristretto.BufferItems,
			Metrics:     c.Ristretto.Metrics,
			DefaultTTL:  c.DefaultTTL,
			Synchronous: c.Ristretto.Synchronous,
		})
	case "bigcache":
		return bigcache.New(bigcache.Config{
			LifeWindow:         c.DefaultTTL,
			CleanWindow:        c.BigCache.CleanWindow,
			MaxEntrySize:       c.BigCache.MaxEntrySize,
			Shards:             c.BigCache.Shards,
			HardMaxCacheSizeMB: c.BigCache.HardMaxCacheSizeMB,
		})
	case "redis":
		return redis.New(redis.Config{
			Client:      c.Redis.client(),
			CloseClient: true,
			DefaultTTL:  c.DefaultTTL,
		})
	}
	return nil, fmt.Errorf("%w: provider.kind %q", ErrInvalid, c.Kind)
}

var newVersion = NewVersion

// NewVersion constructs the configured version source. The redis source
// uses its own client built from provider.redis.
func NewVersion(c VersionConfig, rc RedisConfig) (version.Source, error) {
	var src version.Source
	switch c.Source {
	case "build":
		src = version.Build()
	case "static":
		src = version.Static(c.Value)
	case "env":
		src = version.Env(c.Value)
	case "generation":
		src = version.NewGeneration(c.Value)
	case "redis":
		r, err := version.NewRedis(version.RedisConfig{
			Client:      rc.client(),
			Name:        c.Value,
			TTL:         c.TTL,
			CloseClient: true,
		})
		if err != nil {
			return nil, err
		}
		src = r
	default:
		return nil, fmt.Errorf("%w: version.source %q", ErrInvalid, c.Source)
	}
	if c.CacheFor > 0 {
		src = version.NewCached(src, c.CacheFor)
	}
	return src, nil
}

// NewCodec returns the configured value codec for V.
func NewCodec[V any](name string) (codec.Codec[V], error) {
	switch name {
	case "json":
		return codec.JSON[V]{}, nil
	case "msgpack":
		return codec.Msgpack[V]{JSONTags: true}, nil
	case "cbor":
		return codec.NewCBOR[V](true)
	}
	return nil, fmt.Errorf("%w: codec %q", ErrInvalid, name)
}

func newKeyEncoder(name string) (keys.Encoder, error) {
	switch name {
	case "canonical":
		return keys.Canonical{}, nil
	case "cbor":
		return keys.NewCBOR()
	}
	return nil, fmt.Errorf("%w: key_encoding %q", ErrInvalid, name)
}

// Build assembles a Memo from c. Fields already set in base (Provider,
// Codec, Version, Logger, Hooks, ...) take precedence over the config.
func Build[V any](c *Config, base memocache.Options[V]) (memocache.Memo[V], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts := base
	if opts.Namespace == "" {
		opts.Namespace = c.Namespace
	}
	if opts.TTL == 0 {
		opts.TTL = c.TTL
	}
	opts.Disabled = opts.Disabled || c.Disabled
	opts.Coalesce = opts.Coalesce || c.Coalesce
	opts.FailOpen = opts.FailOpen || c.FailOpen

	if opts.Deriver == nil {
		enc, err := newKeyEncoder(c.KeyEncoding)
		if err != nil {
			return nil, err
		}
		d, err := keys.New(keys.WithAlgorithm(c.HashAlgorithm), keys.WithEncoder(enc))
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		opts.Deriver = d
	}

	if opts.Codec == nil {
		cd, err := NewCodec[V](c.Codec)
		if err != nil {
			return nil, err
		}
		opts.Codec = cd
	}

	// collaborators built here are released if a later step fails
	var built []func(context.Context) error
	fail := func(err error) (memocache.Memo[V], error) {
		for _, closeFn := range built {
			_ = closeFn(context.Background())
		}
		return nil, err
	}

	if opts.Version == nil {
		src, err := newVersion(c.Version, c.Provider.Redis)
		if err != nil {
			return nil, err
		}
		if cl, ok := src.(version.Closer); ok {
			built = append(built, cl.Close)
		}
		opts.Version = src
	}

	if opts.Provider == nil {
		p, err := NewProvider(c.Provider)
		if err != nil {
			return fail(err)
		}
		built = append(built, p.Close)
		opts.Provider = p
	}

	m, err := memocache.New[V](opts)
	if err != nil {
		return fail(err)
	}
	return m, nil
}
