package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/entryhub/internal/resilience"
	"github.com/MrWong99/entryhub/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested backend name.
var ErrProviderNotRegistered = errors.New("config: transcriber not registered")

// Factory constructs a transcriber backend from its configuration entry.
type Factory func(ProviderEntry) (transcribe.Provider, error)

// Registry maps transcriber backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates a transcriber using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) Create(entry ProviderEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateChain instantiates the whole transcription chain declared by pc: the
// primary backend wrapped, when fallbacks are declared, in a
// [resilience.TranscribeFallback] with per-backend circuit breakers.
func (r *Registry) CreateChain(pc ProvidersConfig) (transcribe.Provider, error) {
	primary, err := r.Create(pc.Transcriber)
	if err != nil {
		return nil, fmt.Errorf("config: create transcriber: %w", err)
	}
	if len(pc.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewTranscribeFallback(primary, pc.Transcriber.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  pc.Breaker.MaxFailures,
			ResetTimeout: msDur(pc.Breaker.ResetTimeoutMs),
			HalfOpenMax:  pc.Breaker.HalfOpenMax,
		},
	})
	for i, entry := range pc.Fallbacks {
		p, err := r.Create(entry)
		if err != nil {
			return nil, fmt.Errorf("config: create fallback %d: %w", i, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	return fb, nil
}

// Timeout returns the entry's request timeout or zero when unset.
func (e ProviderEntry) Timeout() time.Duration {
	return msDur(e.TimeoutMs)
}
