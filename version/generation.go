package version

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Generation is an in-process counter rendered as "<prefix><n>". Bump moves
// every memoized result of this process to a fresh key space.
type Generation struct {
	mu        sync.RWMutex
	prefix    string
	gen       uint64
	updatedAt time.Time
}

// NewGeneration starts at generation 0.
func NewGeneration(prefix string) *Generation {
	return &Generation{prefix: prefix}
}

func (g *Generation) Version(context.Context) (string, error) {
	g.mu.RLock()
	n := g.gen
	g.mu.RUnlock()
	return g.prefix + strconv.FormatUint(n, 10), nil
}

// Bump atomically increments and returns the new generation.
func (g *Generation) Bump(context.Context) (uint64, error) {
	now := time.Now()
	g.mu.Lock()
	g.gen++
	g.updatedAt = now
	n := g.gen
	g.mu.Unlock()
	return n, nil
}

// Current returns the generation and when it last moved (zero if never).
func (g *Generation) Current() (uint64, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gen, g.updatedAt
}
