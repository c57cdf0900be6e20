package ristretto

import (
	"context"
	"testing"
	"time"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Metrics:     true,
		DefaultTTL:  time.Minute,
		Synchronous: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get: %q ok=%v err=%v", got, ok, err)
	}

	_ = p.Del(ctx, "k")
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
	if p.DefaultTTL() != time.Minute {
		t.Fatalf("DefaultTTL = %v", p.DefaultTTL())
	}
	if p.Metrics() == nil {
		t.Fatalf("metrics requested but nil")
	}
}

func TestNegativeTTLRejected(t *testing.T) {
	p := newTestProvider(t)
	ok, err := p.Set(context.Background(), "k", []byte("v"), 1, -time.Second)
	if ok || err != nil {
		t.Fatalf("expected refusal without error, ok=%v err=%v", ok, err)
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}
