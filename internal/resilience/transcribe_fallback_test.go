package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe/mock"
)

func TestTranscribeFallback_PrimarySuccess(t *testing.T) {
	primary := &mock.Provider{
		Result: transcribe.Result{Text: "open the gate", Provider: "haassist"},
	}
	secondary := &mock.Provider{
		Result: transcribe.Result{Text: "open the gate", Provider: "whisper"},
	}

	fb := NewTranscribeFallback(primary, "haassist", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper", secondary)

	res, err := fb.Transcribe(context.Background(), make([]int16, 160), 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Provider != "haassist" {
		t.Fatalf("provider = %q, want haassist", res.Provider)
	}
	if len(primary.Calls()) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.Calls()))
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestTranscribeFallback_Failover(t *testing.T) {
	primary := &mock.Provider{TranscribeErr: errors.New("pipeline down")}
	secondary := &mock.Provider{
		Result: transcribe.Result{Text: "lock the door", Provider: "whisper"},
	}

	fb := NewTranscribeFallback(primary, "haassist", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper", secondary)

	res, err := fb.Transcribe(context.Background(), make([]int16, 160), 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "lock the door" || res.Provider != "whisper" {
		t.Fatalf("result = %+v, want whisper fallback result", res)
	}
	if len(secondary.Calls()) != 1 {
		t.Fatalf("secondary called %d times, want 1", len(secondary.Calls()))
	}
}

func TestTranscribeFallback_AllFail(t *testing.T) {
	primary := &mock.Provider{TranscribeErr: errors.New("pipeline down")}
	secondary := &mock.Provider{TranscribeErr: errors.New("server down")}

	fb := NewTranscribeFallback(primary, "haassist", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("whisper", secondary)

	_, err := fb.Transcribe(context.Background(), make([]int16, 160), 16000)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTranscribeFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &mock.Provider{TranscribeErr: errors.New("pipeline down")}
	secondary := &mock.Provider{
		Result: transcribe.Result{Text: "good night", Provider: "whisper"},
	}

	fb := NewTranscribeFallback(primary, "haassist", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fb.AddFallback("whisper", secondary)

	// Two failing rounds open the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := fb.Transcribe(context.Background(), make([]int16, 160), 16000); err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, err)
		}
	}

	if _, err := fb.Transcribe(context.Background(), make([]int16, 160), 16000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(primary.Calls()); got != 2 {
		t.Fatalf("primary called %d times, want 2 (breaker should skip it)", got)
	}
	if got := len(secondary.Calls()); got != 3 {
		t.Fatalf("secondary called %d times, want 3", got)
	}
}
