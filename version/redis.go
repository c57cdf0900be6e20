package version

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNilClient = errors.New("version: nil redis client")

// Redis shares one generation across processes and survives restarts. Any
// replica calling Bump invalidates memoized results fleet-wide.
// If the generation key expires, readers observe generation 0.
type Redis struct {
	rdb         redis.UniversalClient
	key         string
	ttl         time.Duration // optional TTL for the generation key; 0 disables expiry
	closeClient bool
}

var _ Source = (*Redis)(nil)

type RedisConfig struct {
	Client      redis.UniversalClient
	Name        string        // logical name; key is "memocache:gen:<name>"
	TTL         time.Duration // refreshed on Bump
	CloseClient bool          // set true only if this source exclusively owns the client
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	return &Redis{
		rdb:         cfg.Client,
		key:         "memocache:gen:" + name,
		ttl:         cfg.TTL,
		closeClient: cfg.CloseClient,
	}, nil
}

// Version renders the generation as "g<n>". Missing keys are generation 0.
func (s *Redis) Version(ctx context.Context) (string, error) {
	n, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return "g" + strconv.FormatUint(n, 10), nil
}

func (s *Redis) Snapshot(ctx context.Context) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// Bump atomically increments the generation and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in a single round-trip.
func (s *Redis) Bump(ctx context.Context) (uint64, error) {
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, s.key).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, s.key)
		p.Expire(ctx, s.key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}
