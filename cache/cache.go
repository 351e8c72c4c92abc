// Package cache provides the optional admission-time response cache
// described in SPEC_FULL.md §3: identical concurrent requests within a
// short TTL window reuse the last successful response instead of spawning
// a second child process.
package cache

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dazedpro/claude-cli-proxy/types"
)

// DefaultTTL is used when Config.TTL is unset.
const DefaultTTL = 30 * time.Second

const keyPrefix = "claude-cli-proxy:cache:"

// Config configures the Redis-backed cache.
type Config struct {
	// URL is the Redis connection URL. Format: redis://[:password@]host:port[/db].
	URL string
	// TTL is how long a cached response remains valid (default 30s).
	TTL time.Duration
}

// RedisCache is a Redis-backed response cache, grounded in the teacher's
// adapter/redis client-construction pattern but redirected from PUBLISH to
// GET/SET with an expiry.
type RedisCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New creates a RedisCache from the given config. Returns an error if the
// URL is invalid; an empty URL is the caller's signal to fall back to
// httpapi.NoopCache instead of constructing one.
func New(cfg Config) (*RedisCache, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: goredis.NewClient(opts), ttl: ttl}, nil
}

// Get returns the cached response for key, if present and unexpired.
func (c *RedisCache) Get(ctx context.Context, key string) (types.Response, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return types.Response{}, false
	}
	var resp types.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.Response{}, false
	}
	resp.Kind = types.KindSuccess
	return resp, true
}

// Set stores resp under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, resp types.Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err()
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
