// Package mock provides a scripted test double for the audio package
// interfaces.
//
// Use Source to feed a predetermined sequence of sample blocks to the voice
// pipeline. Each ReadBlock call pops the next queued block; once the queue is
// exhausted the source behaves like a silent (degraded) microphone and keeps
// returning zero samples.
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/entryhub/pkg/audio"
)

// ReadBlockCall records a single invocation of Source.ReadBlock.
type ReadBlockCall struct {
	// BufLen is the capacity of the buffer passed by the caller.
	BufLen int

	// Timeout is the timeout the caller allowed.
	Timeout time.Duration
}

// Source is a scripted implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// Rate is the sample rate reported by SampleRate. Defaults to 16000
	// when zero.
	Rate int

	// ReadBlockErr, if non-nil, is returned by every ReadBlock call.
	ReadBlockErr error

	// ReadBlockCalls records every call to ReadBlock in order.
	ReadBlockCalls []ReadBlockCall

	queue [][]int16
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Enqueue appends a block of samples to be returned by subsequent ReadBlock
// calls. The slice is copied.
func (s *Source) Enqueue(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]int16, len(samples))
	copy(cp, samples)
	s.queue = append(s.queue, cp)
}

// EnqueueLevel appends a block of n samples alternating between ±level/2, so
// that its peak-to-peak amplitude is exactly level. Convenient for driving
// threshold tests.
func (s *Source) EnqueueLevel(level int16, n int) {
	samples := make([]int16, n)
	half := level / 2
	for i := range samples {
		if i%2 == 0 {
			samples[i] = half
		} else {
			samples[i] = half - level
		}
	}
	s.Enqueue(samples)
}

// ReadBlock pops the next queued block into buf. With an empty queue it
// returns (0, ReadBlockErr), mimicking a silent or never-opened peripheral.
func (s *Source) ReadBlock(buf []int16, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadBlockCalls = append(s.ReadBlockCalls, ReadBlockCall{BufLen: len(buf), Timeout: timeout})
	if s.ReadBlockErr != nil {
		return 0, s.ReadBlockErr
	}
	if len(s.queue) == 0 {
		return 0, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	n := copy(buf, next)
	return n, nil
}

// SampleRate returns Rate, defaulting to 16000.
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Pending reports how many queued blocks have not been read yet.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Reset clears the queue and all recorded calls. Thread-safe.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.ReadBlockCalls = nil
}
