// Package config loads memoizer settings from YAML and MEMOCACHE_* environment
// variables and assembles a ready Memo from them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "MEMOCACHE"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Namespace     string        `mapstructure:"namespace"`
	HashAlgorithm string        `mapstructure:"hash_algorithm"`
	KeyEncoding   string        `mapstructure:"key_encoding"` // canonical | cbor
	Codec         string        `mapstructure:"codec"`        // json | msgpack | cbor
	TTL           time.Duration `mapstructure:"ttl"`
	Disabled      bool          `mapstructure:"disabled"`
	Coalesce      bool          `mapstructure:"coalesce"`
	FailOpen      bool          `mapstructure:"fail_open"`

	Version  VersionConfig  `mapstructure:"version"`
	Provider ProviderConfig `mapstructure:"provider"`
}

type VersionConfig struct {
	Source   string        `mapstructure:"source"` // build | static | env | generation | redis
	Value    string        `mapstructure:"value"`  // static marker, env var name, or redis generation name
	CacheFor time.Duration `mapstructure:"cache_for"`
	TTL      time.Duration `mapstructure:"ttl"` // redis generation key TTL
}

type ProviderConfig struct {
	Kind       string        `mapstructure:"kind"` // memory | ristretto | bigcache | redis
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	Memory    MemoryConfig    `mapstructure:"memory"`
	Ristretto RistrettoConfig `mapstructure:"ristretto"`
	BigCache  BigCacheConfig  `mapstructure:"bigcache"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type MemoryConfig struct {
	MaxEntries      int           `mapstructure:"max_entries"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RistrettoConfig struct {
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
	BufferItems int64 `mapstructure:"buffer_items"`
	Metrics     bool  `mapstructure:"metrics"`
	Synchronous bool  `mapstructure:"synchronous"`
}

type BigCacheConfig struct {
	Shards             int           `mapstructure:"shards"`
	CleanWindow        time.Duration `mapstructure:"clean_window"`
	MaxEntrySize       int           `mapstructure:"max_entry_size"`
	HardMaxCacheSizeMB int           `mapstructure:"hard_max_cache_size_mb"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("namespace", "")
	v.SetDefault("hash_algorithm", "sha256")
	v.SetDefault("key_encoding", "canonical")
	v.SetDefault("codec", "json")
	v.SetDefault("ttl", "0s")
	v.SetDefault("disabled", false)
	v.SetDefault("coalesce", false)
	v.SetDefault("fail_open", false)

	v.SetDefault("version.source", "build")
	v.SetDefault("version.value", "")
	v.SetDefault("version.cache_for", "0s")
	v.SetDefault("version.ttl", "0s")

	v.SetDefault("provider.kind", "memory")
	v.SetDefault("provider.default_ttl", "10m")
	v.SetDefault("provider.memory.max_entries", 0)
	v.SetDefault("provider.memory.cleanup_interval", "1m")
	v.SetDefault("provider.ristretto.num_counters", 1_000_000)
	v.SetDefault("provider.ristretto.max_cost", 1<<28)
	v.SetDefault("provider.ristretto.buffer_items", 64)
	v.SetDefault("provider.ristretto.metrics", false)
	v.SetDefault("provider.ristretto.synchronous", false)
	v.SetDefault("provider.bigcache.shards", 1024)
	v.SetDefault("provider.bigcache.clean_window", "1m")
	v.SetDefault("provider.bigcache.max_entry_size", 0)
	v.SetDefault("provider.bigcache.hard_max_cache_size_mb", 0)
	v.SetDefault("provider.redis.addr", "localhost:6379")
	v.SetDefault("provider.redis.username", "")
	v.SetDefault("provider.redis.password", "")
	v.SetDefault("provider.redis.db", 0)
}

// Load reads path (YAML; empty path skips the file) and applies MEMOCACHE_*
// overrides, e.g. MEMOCACHE_PROVIDER_KIND=redis.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unable to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.KeyEncoding {
	case "canonical", "cbor":
	default:
		return fmt.Errorf("%w: key_encoding %q", ErrInvalid, c.KeyEncoding)
	}
	switch c.Codec {
	case "json", "msgpack", "cbor":
	default:
		return fmt.Errorf("%w: codec %q", ErrInvalid, c.Codec)
	}
	switch c.Version.Source {
	case "build", "generation":
	case "static":
	case "env", "redis":
		if c.Version.Value == "" {
			return fmt.Errorf("%w: version.value required for source %q", ErrInvalid, c.Version.Source)
		}
	default:
		return fmt.Errorf("%w: version.source %q", ErrInvalid, c.Version.Source)
	}
	switch c.Provider.Kind {
	case "memory", "ristretto", "redis":
	case "bigcache":
		if c.Provider.DefaultTTL <= 0 {
			return fmt.Errorf("%w: bigcache needs provider.default_ttl > 0", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: provider.kind %q", ErrInvalid, c.Provider.Kind)
	}
	return nil
}
