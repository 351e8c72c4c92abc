package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/dazedpro/claude-cli-proxy/types"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := New(Config{URL: "redis://" + mr.Addr(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheMissThenHit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatalf("Get() on empty cache returned hit")
	}

	want := types.Response{Text: "hi", Model: "sonnet", InputTokens: 3}
	c.Set(ctx, "k1", want)

	got, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatalf("Get() after Set() returned miss")
	}
	if got.Text != want.Text || got.Model != want.Model || got.InputTokens != want.InputTokens {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if got.Kind != types.KindSuccess {
		t.Errorf("Get().Kind = %q, want %q", got.Kind, types.KindSuccess)
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	c, err := New(Config{URL: "redis://" + mr.Addr(), TTL: time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	c.Set(ctx, "k1", types.Response{Text: "hi"})
	mr.FastForward(time.Second)

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatalf("Get() returned hit after TTL expiry")
	}
}
