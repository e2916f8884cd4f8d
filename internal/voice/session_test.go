package voice

import (
	"testing"
	"time"
)

func TestSessionCapacity(t *testing.T) {
	// 100 ms at 16 kHz → 1600 samples.
	s := NewSession(100*time.Millisecond, 16000, time.Now())

	block := make([]int16, 500)
	if full := s.Feed(block); full {
		t.Error("Feed reported full at 500/1600 samples")
	}
	if full := s.Feed(block); full {
		t.Error("Feed reported full at 1000/1600 samples")
	}
	// This block exceeds the remaining 600 samples: it must truncate and
	// force finalization, never overflow.
	if full := s.Feed(block); !full {
		t.Error("Feed did not report full when capacity was reached")
	}
	if got := s.SamplesCaptured(); got != 1600 {
		t.Errorf("SamplesCaptured() = %d, want exactly 1600", got)
	}

	// Feeding past full keeps truncating to zero remaining space.
	s.Feed(block)
	if got := s.SamplesCaptured(); got != 1600 {
		t.Errorf("SamplesCaptured() after overfeed = %d, want 1600", got)
	}
}

func TestSessionDuration(t *testing.T) {
	s := NewSession(5*time.Second, 16000, time.Now())
	s.Feed(make([]int16, 8000)) // half a second
	if got := s.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", got)
	}
}

func TestSessionPeakIsIncremental(t *testing.T) {
	s := NewSession(time.Second, 16000, time.Now())
	s.Feed([]int16{-50, 50})   // peak-to-peak 100
	s.Feed([]int16{-300, 300}) // peak-to-peak 600
	s.Feed([]int16{-10, 10})   // quieter again, peak must not drop
	if got := s.Peak(); got != 600 {
		t.Errorf("Peak() = %d, want 600", got)
	}
}

func TestSessionCancelReleasesBuffer(t *testing.T) {
	s := NewSession(time.Second, 16000, time.Now())
	s.Feed(make([]int16, 100))
	s.Cancel()
	if got := s.SamplesCaptured(); got != 0 {
		t.Errorf("SamplesCaptured() after Cancel = %d, want 0", got)
	}
	// Feeding a released session is a defensive no-op, not a crash.
	if full := s.Feed(make([]int16, 100)); full {
		t.Error("Feed on cancelled session reported full")
	}
	if got := s.SamplesCaptured(); got != 0 {
		t.Errorf("SamplesCaptured() after Feed on cancelled session = %d, want 0", got)
	}
	// Double cancel is safe.
	s.Cancel()
}
