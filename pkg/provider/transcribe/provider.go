// Package transcribe defines the Provider interface for speech-to-text
// backends that transcribe one finalized recording at a time.
//
// Unlike a streaming STT session, the entry panel's recorder hands over a
// complete bounded utterance (at most a few seconds of 16-bit mono PCM) and
// waits for a single result. Providers therefore expose exactly one blocking
// call; the voice state machine invokes it from a dedicated goroutine so the
// capture loop never stalls, and guarantees at most one request is in flight
// per panel.
//
// Implementations must be safe for concurrent use — a fallback chain may
// probe a provider while a previous request against it is timing out.
package transcribe

import "context"

// Result is a completed transcription. It is never partially valid: a
// Provider returns either a Result with Text set, or an error.
type Result struct {
	// Text is the transcribed speech content. May be empty when the service
	// heard nothing intelligible; that is a valid result, not an error.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64

	// Provider names the backend that produced the result (e.g. "haassist",
	// "whisper"). Useful in logs when a fallback chain is active.
	Provider string
}

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Transcribe submits mono 16-bit PCM samples at the given sample rate and
	// blocks until the backend returns text or fails. Implementations must
	// respect ctx cancellation and deadlines; the caller applies the
	// per-request timeout.
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (Result, error)
}
