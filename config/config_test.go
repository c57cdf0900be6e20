package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/unkn0wn-root/memocache"
	"github.com/unkn0wn-root/memocache/provider/memory"
	"github.com/unkn0wn-root/memocache/provider/ristretto"
	"github.com/unkn0wn-root/memocache/version"
)

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigSuite) writeYAML(body string) string {
	p := filepath.Join(s.dir, "memocache.yaml")
	s.Require().NoError(os.WriteFile(p, []byte(body), 0o600))
	return p
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := Load("")
	s.Require().NoError(err)

	s.Equal("sha256", cfg.HashAlgorithm)
	s.Equal("canonical", cfg.KeyEncoding)
	s.Equal("json", cfg.Codec)
	s.Equal("build", cfg.Version.Source)
	s.Equal("memory", cfg.Provider.Kind)
	s.Equal(10*time.Minute, cfg.Provider.DefaultTTL)
	s.Equal(int64(1_000_000), cfg.Provider.Ristretto.NumCounters)
	s.Zero(cfg.TTL)
	s.False(cfg.Coalesce)
}

func (s *ConfigSuite) TestYAMLFile() {
	path := s.writeYAML(`
namespace: app:prod
hash_algorithm: blake2b-256
key_encoding: cbor
codec: msgpack
ttl: 90s
coalesce: true
version:
  source: static
  value: r1
provider:
  kind: ristretto
  default_ttl: 1h
  ristretto:
    synchronous: true
`)
	cfg, err := Load(path)
	s.Require().NoError(err)

	s.Equal("app:prod", cfg.Namespace)
	s.Equal("blake2b-256", cfg.HashAlgorithm)
	s.Equal("cbor", cfg.KeyEncoding)
	s.Equal("msgpack", cfg.Codec)
	s.Equal(90*time.Second, cfg.TTL)
	s.True(cfg.Coalesce)
	s.Equal("r1", cfg.Version.Value)
	s.Equal("ristretto", cfg.Provider.Kind)
	s.Equal(time.Hour, cfg.Provider.DefaultTTL)
	s.True(cfg.Provider.Ristretto.Synchronous)
	s.Equal(int64(64), cfg.Provider.Ristretto.BufferItems)
}

func (s *ConfigSuite) TestEnvOverrides() {
	s.T().Setenv("MEMOCACHE_PROVIDER_KIND", "bigcache")
	s.T().Setenv("MEMOCACHE_PROVIDER_DEFAULT_TTL", "5m")
	s.T().Setenv("MEMOCACHE_FAIL_OPEN", "true")

	cfg, err := Load(s.writeYAML("provider:\n  kind: memory\n"))
	s.Require().NoError(err)
	s.Equal("bigcache", cfg.Provider.Kind)
	s.Equal(5*time.Minute, cfg.Provider.DefaultTTL)
	s.True(cfg.FailOpen)
}

func (s *ConfigSuite) TestValidation() {
	cases := map[string]string{
		"codec":         "codec: gob\n",
		"key encoding":  "key_encoding: json\n",
		"version":       "version:\n  source: git\n",
		"env name":      "version:\n  source: env\n",
		"provider kind": "provider:\n  kind: memcached\n",
		"bigcache ttl":  "provider:\n  kind: bigcache\n  default_ttl: 0s\n",
	}
	for name, body := range cases {
		_, err := Load(s.writeYAML(body))
		s.ErrorIs(err, ErrInvalid, name)
	}

	_, err := Load(filepath.Join(s.dir, "missing.yaml"))
	s.Error(err)
}

func (s *ConfigSuite) TestNewProvider() {
	p, err := NewProvider(ProviderConfig{Kind: "memory", DefaultTTL: time.Minute})
	s.Require().NoError(err)
	s.IsType(&memory.Provider{}, p)
	s.Equal(time.Minute, p.DefaultTTL())
	s.NoError(p.Close(context.Background()))

	p, err = NewProvider(ProviderConfig{
		Kind:       "ristretto",
		DefaultTTL: time.Minute,
		Ristretto:  RistrettoConfig{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64},
	})
	s.Require().NoError(err)
	s.IsType(&ristretto.Provider{}, p)
	s.NoError(p.Close(context.Background()))
}

func (s *ConfigSuite) TestNewVersion() {
	src, err := NewVersion(VersionConfig{Source: "static", Value: "r9", CacheFor: time.Minute}, RedisConfig{})
	s.Require().NoError(err)
	s.IsType(&version.Cached{}, src)
	v, err := src.Version(context.Background())
	s.Require().NoError(err)
	s.Equal("r9", v)
}

type item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func (s *ConfigSuite) TestBuild() {
	ctx := context.Background()
	cfg, err := Load(s.writeYAML(`
namespace: items
codec: cbor
version:
  source: generation
  value: g
provider:
  kind: memory
`))
	s.Require().NoError(err)

	m, err := Build[item](cfg, memocache.Options[item]{})
	s.Require().NoError(err)
	defer m.Close(ctx)

	calls := 0
	fn := func(context.Context) (item, error) {
		calls++
		return item{ID: 7, Title: "seven"}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := m.Remember(ctx, memocache.On("items", "Get", 7), fn)
		s.Require().NoError(err)
		s.Equal(item{ID: 7, Title: "seven"}, got)
	}
	s.Equal(1, calls)
}

type closingVersion struct {
	version.Static
	closed bool
}

func (v *closingVersion) Close(context.Context) error {
	v.closed = true
	return nil
}

func (s *ConfigSuite) TestBuildReleasesVersionOnProviderError() {
	src := &closingVersion{Static: "r1"}
	prev := newVersion
	newVersion = func(VersionConfig, RedisConfig) (version.Source, error) { return src, nil }
	defer func() { newVersion = prev }()

	cfg, err := Load(s.writeYAML(`
version:
  source: redis
  value: fleet
provider:
  kind: ristretto
  ristretto:
    num_counters: 0
`))
	s.Require().NoError(err)

	_, err = Build[item](cfg, memocache.Options[item]{})
	s.Require().Error(err)
	s.True(src.closed, "version source built for the memo must be closed when the provider fails")
}
