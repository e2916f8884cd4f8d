// Package pcmstream adapts a byte stream of little-endian signed 16-bit mono
// PCM into an [audio.Source].
//
// The stream can be anything that delivers raw PCM bytes: a FIFO fed by
// arecord, a capture character device, or stdin. A background goroutine
// drains the stream into a bounded ring buffer; ReadBlock serves from the
// ring within its timeout. When the ring overflows the oldest samples are
// dropped, bounding capture latency at the cost of a gap — on a panel a
// stale command is worse than a clipped one.
//
// A source whose stream failed to open stays usable and reads as permanent
// silence, per the [audio.Source] degraded-mode contract.
package pcmstream

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/entryhub/pkg/audio"
)

// Compile-time assertion that Source implements audio.Source.
var _ audio.Source = (*Source)(nil)

// defaultRingSeconds sizes the ring buffer. Two seconds absorbs scheduler
// hiccups without letting a stalled consumer accumulate stale audio.
const defaultRingSeconds = 2

// Option is a functional option for [New].
type Option func(*Source)

// WithRingSize overrides the ring capacity in samples.
func WithRingSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.ring = make([]int16, n)
		}
	}
}

// Source is an [audio.Source] backed by a PCM byte stream. It is safe for
// one concurrent reader alongside the internal fill goroutine.
type Source struct {
	rate   int
	closer io.Closer

	mu     sync.Mutex
	ring   []int16
	start  int // index of the oldest sample
	length int // samples currently buffered
	eof    bool

	// notify has capacity 1 and is poked after every fill so a waiting
	// ReadBlock can wake early.
	notify chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// New wraps r as a Source at the given sample rate and starts draining it.
// Close the source to stop the fill goroutine; if r is an io.Closer it is
// closed too.
func New(r io.Reader, rate int, opts ...Option) *Source {
	s := &Source{
		rate:   rate,
		ring:   make([]int16, rate*defaultRingSeconds),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	go s.fill(r)
	return s
}

// Open opens the PCM stream at path ("-" means stdin) and wraps it in a
// Source. On open failure it logs a warning and returns a silent source:
// missing audio is degraded mode, not a startup error.
func Open(path string, rate int) *Source {
	if path == "-" {
		return New(os.Stdin, rate)
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("pcmstream: cannot open capture device, running without audio",
			"path", path, "error", err)
		return Silent(rate)
	}
	return New(f, rate)
}

// Silent returns a Source that never produces samples.
func Silent(rate int) *Source {
	s := &Source{
		rate:   rate,
		ring:   make([]int16, 1),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		eof:    true,
	}
	s.closeOnce.Do(func() { close(s.done) })
	return s
}

// SampleRate returns the stream's sample rate in Hz.
func (s *Source) SampleRate() int { return s.rate }

// Close stops the fill goroutine and closes the underlying stream when it is
// closeable. Pending buffered samples remain readable.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

// ReadBlock fills buf from the ring, waiting up to timeout for the first
// samples to arrive. It returns the number of samples written; zero after a
// quiet timeout or once the stream has ended and drained.
func (s *Source) ReadBlock(buf []int16, timeout time.Duration) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if n := s.take(buf); n > 0 {
			return n, nil
		}
		s.mu.Lock()
		finished := s.eof
		s.mu.Unlock()
		if finished {
			return 0, nil
		}
		select {
		case <-s.notify:
		case <-deadline.C:
			return 0, nil
		case <-s.done:
			return 0, nil
		}
	}
}

// take copies up to len(buf) samples out of the ring.
func (s *Source) take(buf []int16) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(len(buf), s.length)
	for i := 0; i < n; i++ {
		buf[i] = s.ring[(s.start+i)%len(s.ring)]
	}
	s.start = (s.start + n) % len(s.ring)
	s.length -= n
	return n
}

// fill drains the byte stream into the ring until EOF, error, or Close.
func (s *Source) fill(r io.Reader) {
	raw := make([]byte, 4096)
	var carry byte
	var haveCarry bool

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := r.Read(raw)
		if n > 0 {
			chunk := raw[:n]
			if haveCarry {
				chunk = append([]byte{carry}, chunk...)
				haveCarry = false
			}
			if len(chunk)%2 == 1 {
				carry = chunk[len(chunk)-1]
				haveCarry = true
				chunk = chunk[:len(chunk)-1]
			}
			s.push(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.Warn("pcmstream: capture stream failed", "error", err)
			}
			s.mu.Lock()
			s.eof = true
			s.mu.Unlock()
			s.poke()
			return
		}
	}
}

// push appends decoded samples to the ring, dropping the oldest on overflow.
func (s *Source) push(chunk []byte) {
	s.mu.Lock()
	for i := 0; i+1 < len(chunk); i += 2 {
		v := int16(binary.LittleEndian.Uint16(chunk[i:]))
		if s.length == len(s.ring) {
			// Overwrite the oldest sample.
			s.start = (s.start + 1) % len(s.ring)
			s.length--
		}
		s.ring[(s.start+s.length)%len(s.ring)] = v
		s.length++
	}
	s.mu.Unlock()
	s.poke()
}

// poke wakes a waiting ReadBlock without blocking.
func (s *Source) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
