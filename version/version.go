// Package version provides sources for the global version marker that is
// folded into every memocache key. Changing the marker invalidates all
// previously derived keys at once without touching the backend.
package version

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// Source yields the current version marker. memocache reads it once per call.
type Source interface {
	Version(ctx context.Context) (string, error)
}

// Closer is implemented by sources holding resources (tickers, clients).
type Closer interface {
	Close(ctx context.Context) error
}

var ErrUnset = errors.New("version: marker not set")

// Func adapts a plain function.
type Func func(ctx context.Context) (string, error)

func (f Func) Version(ctx context.Context) (string, error) { return f(ctx) }

// Static always returns the same marker. The empty marker is valid.
type Static string

func (s Static) Version(context.Context) (string, error) { return string(s), nil }

// Build reports the VCS revision embedded by the Go toolchain, suffixed with
// "+dirty" for modified trees. Binaries built without VCS stamping fall back
// to the main module version, then to "devel".
func Build() Static {
	buildOnce.Do(func() { buildMarker = readBuild() })
	return Static(buildMarker)
}

var (
	buildOnce   sync.Once
	buildMarker string
)

func readBuild() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev != "" {
		if dirty {
			rev += "+dirty"
		}
		return rev
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	return "devel"
}

// Env reads the marker from an environment variable on every call.
type Env string

func (e Env) Version(context.Context) (string, error) {
	v, ok := os.LookupEnv(string(e))
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrUnset, string(e))
	}
	return v, nil
}

// Cached memoizes another source for a fixed interval. Errors are not cached.
type Cached struct {
	src   Source
	every time.Duration
	now   func() time.Time

	mu   sync.Mutex
	val  string
	at   time.Time
	have bool
}

func NewCached(src Source, every time.Duration) *Cached {
	return &Cached{src: src, every: every, now: time.Now}
}

func (c *Cached) Version(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.have && c.now().Sub(c.at) < c.every {
		return c.val, nil
	}
	v, err := c.src.Version(ctx)
	if err != nil {
		return "", err
	}
	c.val, c.at, c.have = v, c.now(), true
	return v, nil
}

// Reset forces the next call to consult the wrapped source.
func (c *Cached) Reset() {
	c.mu.Lock()
	c.have = false
	c.mu.Unlock()
}

func (c *Cached) Close(ctx context.Context) error {
	if cl, ok := c.src.(Closer); ok {
		return cl.Close(ctx)
	}
	return nil
}
