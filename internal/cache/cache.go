// Package cache implements C5, a content-addressed artifact cache for
// translations and synthesized audio, backed by Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	KindTranslation = "translation"
	KindTTS         = "tts"

	TranslationTTL = 7 * 24 * time.Hour
	TTSTTL         = 24 * time.Hour
)

// RedisCache implements interfaces.Cache over a go-redis client. A miss and
// an underlying Redis error are both reported as (nil, false) — callers
// always have a fallback generator and never treat the cache as load
// bearing for correctness.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisCache) Get(ctx context.Context, kind, content, lang string) ([]byte, bool) {
	value, err := c.client.Get(ctx, buildKey(kind, content, lang)).Result()
	if err != nil {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func (c *RedisCache) Put(ctx context.Context, kind, content, lang string, value []byte, ttl time.Duration) {
	encoded := base64.StdEncoding.EncodeToString(value)
	// FUNCTIONAL DISCOVERY: errors here are deliberately swallowed — a
	// cache write failure degrades latency on the next read, never
	// correctness. The error is neither returned nor logged.
	_ = c.client.Set(ctx, buildKey(kind, content, lang), encoded, ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func buildKey(kind, content, lang string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s:%s:%s", kind, hex.EncodeToString(sum[:]), lang)
}
