// Package mock provides a test double for the transcribe package interfaces.
//
// Use Provider to inject canned transcription results and inspect the audio
// that was submitted.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the PCM samples passed to Transcribe.
	Samples []int16

	// SampleRate is the sample rate passed to Transcribe.
	SampleRate int
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call.
	Result transcribe.Result

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// Block, if non-nil, is closed-upon to release Transcribe: the call
	// waits until the channel is closed or ctx is done. Leave nil for an
	// immediate return.
	Block chan struct{}

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Ensure Provider implements transcribe.Provider at compile time.
var _ transcribe.Provider = (*Provider)(nil)

// Transcribe records the call and returns Result, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, samples []int16, sampleRate int) (transcribe.Result, error) {
	p.mu.Lock()
	cp := make([]int16, len(samples))
	copy(cp, samples)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Samples: cp, SampleRate: sampleRate})
	block := p.Block
	res, err := p.Result, p.TranscribeErr
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return transcribe.Result{}, ctx.Err()
		}
	}
	return res, err
}

// Calls returns a snapshot of the recorded calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
