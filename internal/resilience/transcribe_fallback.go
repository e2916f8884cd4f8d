package resilience

import (
	"context"

	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
)

// TranscribeFallback implements [transcribe.Provider] with automatic failover
// across multiple speech-to-text backends. Each backend has its own circuit
// breaker, so a dead local pipeline stops being probed on every utterance
// while the cloud fallback keeps the panel usable.
type TranscribeFallback struct {
	group *FallbackGroup[transcribe.Provider]
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback creates a [TranscribeFallback] with primary as the
// preferred backend.
func NewTranscribeFallback(primary transcribe.Provider, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription provider as a fallback.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe submits the recording to the first healthy backend. If the
// primary fails or its breaker is open, subsequent fallbacks are tried in
// order. The same ctx bounds every attempt, so the caller's per-utterance
// timeout covers the whole chain.
func (f *TranscribeFallback) Transcribe(ctx context.Context, samples []int16, sampleRate int) (transcribe.Result, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) (transcribe.Result, error) {
		return p.Transcribe(ctx, samples, sampleRate)
	})
}
