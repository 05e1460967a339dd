package interfaces

import (
	"context"
	"time"
)

// Cache is C5: a content-addressed artifact cache. A miss and an
// underlying error are both reported as (nil, false) to callers — the
// caller always has a fallback generator and the cache is never load
// bearing for correctness, only for latency and cost.
type Cache interface {
	Get(ctx context.Context, kind, content, lang string) ([]byte, bool)
	Put(ctx context.Context, kind, content, lang string, value []byte, ttl time.Duration)
}
