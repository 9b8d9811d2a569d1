package synctoken

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	infracache "github.com/R3E-Network/syncengine/infrastructure/cache"
)

// Cache persists a connection's last-known token across refresh calls. It is
// keyed by source-connection ID, not by token value, so a miss always means
// "no token has been issued yet for this connection" rather than "unknown
// token".
type Cache interface {
	Get(ctx context.Context, connectionID string) (*Token, bool)
	Set(ctx context.Context, connectionID string, tok *Token, ttl time.Duration)
}

// memoryCache wraps infrastructure/cache's single-process TokenCache. Both
// example connectors' token managers use it; RedisConfig.URL is not read
// when choosing a cache.
type memoryCache struct {
	tc *infracache.TokenCache
}

// NewMemoryCache builds the single-process token cache.
func NewMemoryCache() Cache {
	return &memoryCache{tc: infracache.NewTokenCache(infracache.DefaultConfig())}
}

func (m *memoryCache) Get(_ context.Context, connectionID string) (*Token, bool) {
	v, ok := m.tc.GetToken(connectionID)
	if !ok {
		return nil, false
	}
	tok, ok := v.(*Token)
	return tok, ok
}

func (m *memoryCache) Set(_ context.Context, connectionID string, tok *Token, ttl time.Duration) {
	m.tc.SetToken(connectionID, tok, ttl)
}

// redisCache is the multi-process cache, built by NewRedisCache from a
// caller-supplied client, so that every worker process sharing a sync job
// observes the same refreshed token instead of each independently
// re-authenticating. Nothing in this tree builds one from REDIS_URL.
type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache builds the distributed token cache.
func NewRedisCache(rdb *redis.Client) Cache {
	return &redisCache{rdb: rdb, prefix: "synctoken:"}
}

type cachedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (r *redisCache) Get(ctx context.Context, connectionID string) (*Token, bool) {
	raw, err := r.rdb.Get(ctx, r.prefix+connectionID).Bytes()
	if err != nil {
		return nil, false
	}
	var ct cachedToken
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, false
	}
	return &Token{AccessToken: ct.AccessToken, RefreshToken: ct.RefreshToken, ExpiresAt: ct.ExpiresAt}, true
}

func (r *redisCache) Set(ctx context.Context, connectionID string, tok *Token, ttl time.Duration) {
	raw, err := json.Marshal(cachedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	})
	if err != nil {
		return
	}
	r.rdb.Set(ctx, r.prefix+connectionID, raw, ttl)
}
