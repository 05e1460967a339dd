package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewRedisCache(mr.Addr(), "", 0)
}

func TestRedisCache_PutThenGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, KindTranslation, "hello", "es", []byte("hola"), TranslationTTL)

	value, ok := c.Get(ctx, KindTranslation, "hello", "es")
	if !ok {
		t.Fatal("expected cache hit after put")
	}
	if string(value) != "hola" {
		t.Errorf("value = %q, want %q", value, "hola")
	}
}

func TestRedisCache_Miss(t *testing.T) {
	c := newTestCache(t)
	if _, ok := c.Get(context.Background(), KindTranslation, "never stored", "fr"); ok {
		t.Error("expected miss for content never put")
	}
}

func TestRedisCache_DistinctLanguagesDistinctKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, KindTranslation, "hello", "es", []byte("hola"), TranslationTTL)
	c.Put(ctx, KindTranslation, "hello", "fr", []byte("bonjour"), TranslationTTL)

	es, _ := c.Get(ctx, KindTranslation, "hello", "es")
	fr, _ := c.Get(ctx, KindTranslation, "hello", "fr")

	if string(es) != "hola" || string(fr) != "bonjour" {
		t.Errorf("expected distinct values per language, got es=%q fr=%q", es, fr)
	}
}

func TestRedisCache_Expiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := NewRedisCache(mr.Addr(), "", 0)
	ctx := context.Background()

	c.Put(ctx, KindTTS, "speak this", "en", []byte("audio-bytes"), time.Millisecond)
	// miniredis ages keys only when its clock is advanced explicitly.
	mr.FastForward(20 * time.Millisecond)

	if _, ok := c.Get(ctx, KindTTS, "speak this", "en"); ok {
		t.Error("expected expired entry to miss")
	}
}
