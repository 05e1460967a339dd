// Package gateway implements C6: cache-first orchestration of translation,
// speech-to-text, and text-to-speech, each backed by a single-method
// provider adapter (see adapters.go) that owns no retry policy.
package gateway

import (
	"context"
	"time"

	"roomcoordinator/internal/cache"
	"roomcoordinator/pkg/interfaces"
)

// Gateway wires the three provider adapters to the artifact cache. Every
// method degrades gracefully on provider failure rather than propagating
// the error up to a socket teardown.
type Gateway struct {
	translator  interfaces.Translator
	transcriber interfaces.Transcriber
	synthesizer interfaces.Synthesizer
	cache       interfaces.Cache
	logger      Logger
}

// Logger is the narrow slice of structured logging Gateway needs; satisfied
// by a *zap.Logger-wrapping adapter (see internal/app) or a no-op for tests.
type Logger interface {
	Warn(msg string, fields ...interface{})
}

func New(translator interfaces.Translator, transcriber interfaces.Transcriber, synthesizer interfaces.Synthesizer, c interfaces.Cache, logger Logger) *Gateway {
	return &Gateway{translator: translator, transcriber: transcriber, synthesizer: synthesizer, cache: c, logger: logger}
}

// Translate is cache-first; on provider failure it returns the original
// text with errored=true so the coordinator can still deliver the message.
func (g *Gateway) Translate(ctx context.Context, text, sourceLang, targetLang string) (translated string, errored bool) {
	if sourceLang == targetLang {
		return text, false
	}

	if cached, ok := g.cache.Get(ctx, cache.KindTranslation, text, targetLang); ok {
		return string(cached), false
	}

	result, err := g.translator.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		g.logger.Warn("translation provider failed", "error", err, "target_lang", targetLang)
		return text, true
	}

	g.cache.Put(ctx, cache.KindTranslation, text, targetLang, []byte(result), cache.TranslationTTL)
	return result, false
}

// Transcribe returns ("", false) on provider failure; the caller surfaces
// an stt_error to the sender and aborts the send pipeline.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, lang string) (text string, ok bool) {
	result, err := g.transcriber.Transcribe(ctx, audio, lang)
	if err != nil {
		g.logger.Warn("transcription provider failed", "error", err)
		return "", false
	}
	return result, true
}

// Synthesize is cache-first; returns (nil, false) on provider failure.
func (g *Gateway) Synthesize(ctx context.Context, text, lang string) (audio []byte, ok bool) {
	if cached, hit := g.cache.Get(ctx, cache.KindTTS, text, lang); hit {
		return cached, true
	}

	result, err := g.synthesizer.Synthesize(ctx, text, lang)
	if err != nil {
		g.logger.Warn("synthesis provider failed", "error", err)
		return nil, false
	}

	g.cache.Put(ctx, cache.KindTTS, text, lang, result, cache.TTSTTL)
	return result, true
}

// providerTimeout is the deadline WithTimeout applies to an outbound call:
// a hung provider degrades the one request, not the room.
const providerTimeout = 10 * time.Second

// WithTimeout wraps ctx with the default provider deadline. internal/room
// does not call it: the coordinator passes the socket's context (which has
// no deadline) straight through, so its provider calls are bounded by the
// adapters' own http.Client timeout.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, providerTimeout)
}
