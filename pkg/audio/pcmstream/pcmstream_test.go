package pcmstream

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"
)

// pcmBytes encodes samples as little-endian 16-bit PCM.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func readAll(t *testing.T, s *Source, want int) []int16 {
	t.Helper()
	var got []int16
	buf := make([]int16, 64)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < want {
		if time.Now().After(deadline) {
			t.Fatalf("read %d of %d samples before deadline", len(got), want)
		}
		n, err := s.ReadBlock(buf, 20*time.Millisecond)
		if err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	return got
}

func TestReadBlockDeliversSamplesInOrder(t *testing.T) {
	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = int16(i - 500)
	}
	s := New(bytes.NewReader(pcmBytes(samples)), 16000)
	defer s.Close()

	got := readAll(t, s, len(samples))
	for i, v := range got {
		if v != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, v, samples[i])
		}
	}
}

func TestReadBlockTimesOutQuietly(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := New(r, 16000)
	defer s.Close()

	buf := make([]int16, 64)
	start := time.Now()
	n, err := s.ReadBlock(buf, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0 on timeout", n)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("returned after %v, want the timeout to elapse", elapsed)
	}
}

func TestExhaustedStreamReadsAsSilence(t *testing.T) {
	s := New(bytes.NewReader(pcmBytes([]int16{1, 2, 3})), 16000)
	defer s.Close()

	readAll(t, s, 3)

	buf := make([]int16, 16)
	n, err := s.ReadBlock(buf, 5*time.Millisecond)
	if err != nil || n != 0 {
		t.Errorf("ReadBlock after EOF = (%d, %v), want (0, nil)", n, err)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = int16(i)
	}
	s := New(bytes.NewReader(pcmBytes(samples)), 16000, WithRingSize(10))

	// Give the fill goroutine time to overflow the 10-sample ring.
	time.Sleep(50 * time.Millisecond)

	got := readAll(t, s, 10)
	// The newest 10 samples survive.
	for i, v := range got {
		if v != int16(90+i) {
			t.Fatalf("sample %d = %d, want %d (oldest should be dropped)", i, v, 90+i)
		}
	}
	s.Close()
}

func TestOddByteCarry(t *testing.T) {
	// Split the byte stream mid-sample to exercise the carry path.
	data := pcmBytes([]int16{100, 200, 300})
	r, w := io.Pipe()
	s := New(r, 16000)
	defer s.Close()

	go func() {
		w.Write(data[:3])
		time.Sleep(5 * time.Millisecond)
		w.Write(data[3:])
		w.Close()
	}()

	got := readAll(t, s, 3)
	for i, want := range []int16{100, 200, 300} {
		if got[i] != want {
			t.Errorf("sample %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestSilentSource(t *testing.T) {
	s := Silent(16000)
	if s.SampleRate() != 16000 {
		t.Errorf("SampleRate = %d", s.SampleRate())
	}
	buf := make([]int16, 32)
	n, err := s.ReadBlock(buf, time.Millisecond)
	if err != nil || n != 0 {
		t.Errorf("ReadBlock = (%d, %v), want (0, nil)", n, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenMissingDeviceIsDegraded(t *testing.T) {
	s := Open("/nonexistent/pcm-fifo", 16000)
	defer s.Close()

	buf := make([]int16, 32)
	n, err := s.ReadBlock(buf, time.Millisecond)
	if err != nil || n != 0 {
		t.Errorf("ReadBlock = (%d, %v), want (0, nil)", n, err)
	}
}
