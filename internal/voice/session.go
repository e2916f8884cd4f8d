package voice

import (
	"time"

	"github.com/MrWong99/entryhub/pkg/audio"
)

// Session accumulates the sample blocks of one captured utterance, from
// trigger to finalize or cancel. Its buffer is sized up front for the maximum
// configured recording duration; feeding past capacity truncates and reports
// "full" so the caller finalizes instead of overflowing.
//
// A Session is owned exclusively by the state machine between trigger and
// return-to-Idle. It is not safe for concurrent use.
type Session struct {
	samples    []int16
	sampleRate int
	createdAt  time.Time
	peak       audio.RawLevel
	released   bool
}

// NewSession allocates a session capable of holding maxDuration of audio at
// sampleRate.
func NewSession(maxDuration time.Duration, sampleRate int, createdAt time.Time) *Session {
	capacity := int(maxDuration.Seconds() * float64(sampleRate))
	return &Session{
		samples:    make([]int16, 0, capacity),
		sampleRate: sampleRate,
		createdAt:  createdAt,
	}
}

// Feed appends block to the buffer, truncating to the remaining space, and
// reports whether the buffer is now full. A full return value means the
// caller must finalize; excess samples are dropped, never written past
// capacity. Feeding a released session is a no-op.
//
// The peak level is tracked incrementally per block so that finalization
// never has to rescan the whole buffer.
func (s *Session) Feed(block []int16) (full bool) {
	if s.released {
		return false
	}
	if p := audio.PeakToPeak(block); p > s.peak {
		s.peak = p
	}
	remaining := cap(s.samples) - len(s.samples)
	if len(block) > remaining {
		block = block[:remaining]
	}
	s.samples = append(s.samples, block...)
	return len(s.samples) == cap(s.samples)
}

// Cancel discards all buffered audio and releases the buffer. A cancelled
// session is never handed to a transcriber. Safe to call more than once.
func (s *Session) Cancel() {
	s.samples = nil
	s.released = true
}

// Samples returns the captured audio. The caller must not retain the slice
// past the session's lifetime unless it copies.
func (s *Session) Samples() []int16 {
	return s.samples
}

// SamplesCaptured returns the number of buffered samples.
func (s *Session) SamplesCaptured() int {
	return len(s.samples)
}

// Duration returns the audio length represented by the buffered samples.
func (s *Session) Duration() time.Duration {
	return time.Duration(len(s.samples)) * time.Second / time.Duration(s.sampleRate)
}

// Peak returns the highest per-block peak-to-peak amplitude fed so far.
func (s *Session) Peak() audio.RawLevel {
	return s.peak
}

// CreatedAt returns the session's creation timestamp.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}
