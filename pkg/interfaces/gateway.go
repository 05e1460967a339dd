package interfaces

import "context"

// Translator, Transcriber, and Synthesizer are the three single-method
// provider adapters C6 wraps. Each returns a typed failure via the error
// return; none owns a retry policy — one attempt per call, the caller
// (internal/gateway) decides how to degrade.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, lang string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}
