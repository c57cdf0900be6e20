// Package memory is an in-process Provider backed by a map. It suits tests,
// single-process tools, and as a reference for the provider contract.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/memocache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no expiry
}

type Provider struct {
	mu         sync.RWMutex
	m          map[string]entry
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	DefaultTTL time.Duration // 0 => entries without TTL never expire
	MaxEntries int           // 0 = unlimited; full store refuses new keys (ok=false)

	// CleanupInterval runs a background sweep of expired entries.
	// 0 disables it; expired entries are then dropped lazily on Get.
	CleanupInterval time.Duration
}

func New(cfg Config) *Provider {
	p := &Provider{
		m:          make(map[string]entry),
		defaultTTL: cfg.DefaultTTL,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
	}
	if cfg.CleanupInterval > 0 {
		p.ticker = time.NewTicker(cfg.CleanupInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					p.Sweep()
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		p.mu.Lock()
		if cur, ok := p.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.v...), true, nil
}

// Set copies value. Get returns a copy as well, so callers may keep and
// mutate what they hold. ttl <= 0 stores without expiry.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	v := append([]byte(nil), value...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.m[key]; !exists && p.maxEntries > 0 && len(p.m) >= p.maxEntries {
		return false, nil
	}
	p.m[key] = entry{v: v, exp: exp}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Provider) DefaultTTL() time.Duration { return p.defaultTTL }

// Len reports stored entries, expired ones included until swept.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

// Sweep drops expired entries.
func (p *Provider) Sweep() {
	now := p.now()
	p.mu.Lock()
	for k, e := range p.m {
		if !e.exp.IsZero() && !now.Before(e.exp) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}

func (p *Provider) Close(_ context.Context) error {
	p.once.Do(func() {
		if p.stopCh != nil {
			close(p.stopCh)
			p.ticker.Stop()
			p.wg.Wait()
		}
	})
	return nil
}
