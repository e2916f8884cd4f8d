package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidTranscriberNames lists known transcriber backend names.
// Used by [Validate] to warn about unrecognised names.
var ValidTranscriberNames = []string{"haassist", "whisper", "openai"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Panel
	if cfg.Panel.LogLevel != "" && !cfg.Panel.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("panel.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Panel.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BlockSamples < 0 {
		errs = append(errs, fmt.Errorf("audio.block_samples %d must not be negative", cfg.Audio.BlockSamples))
	}

	// Wake
	if cfg.Wake.Mode != "" && !cfg.Wake.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("wake.mode %q is invalid; valid values: threshold, touch, button, disabled", cfg.Wake.Mode))
	}
	if s := cfg.Wake.Sensitivity; s != nil && (*s < 0 || *s > 1) {
		errs = append(errs, fmt.Errorf("wake.sensitivity %.2f is out of range [0, 1]", *s))
	}
	if cfg.Wake.SpikeMultiplier != 0 && cfg.Wake.SpikeMultiplier < 1 {
		errs = append(errs, fmt.Errorf("wake.spike_multiplier %.2f must be at least 1", cfg.Wake.SpikeMultiplier))
	}
	if cfg.Wake.BaselineWindow < 0 {
		errs = append(errs, fmt.Errorf("wake.baseline_window %d must not be negative", cfg.Wake.BaselineWindow))
	}

	// Voice: the silence threshold must stay below the speech threshold or
	// the hysteresis inverts and recordings never end cleanly.
	if cfg.Voice.SpeechThreshold != 0 && cfg.Voice.SilenceThreshold != 0 &&
		cfg.Voice.SilenceThreshold >= cfg.Voice.SpeechThreshold {
		errs = append(errs, fmt.Errorf("voice.silence_threshold %d must be below voice.speech_threshold %d",
			cfg.Voice.SilenceThreshold, cfg.Voice.SpeechThreshold))
	}
	if cfg.Voice.MinRecordingMs != 0 && cfg.Voice.MaxRecordingMs != 0 &&
		cfg.Voice.MinRecordingMs > cfg.Voice.MaxRecordingMs {
		errs = append(errs, fmt.Errorf("voice.min_recording_ms %d exceeds voice.max_recording_ms %d",
			cfg.Voice.MinRecordingMs, cfg.Voice.MaxRecordingMs))
	}

	// Providers
	if cfg.Providers.Transcriber.Name == "" {
		errs = append(errs, errors.New("providers.transcriber.name is required"))
	} else {
		validateTranscriberName("providers.transcriber", cfg.Providers.Transcriber.Name)
	}
	namesSeen := map[string]bool{cfg.Providers.Transcriber.Name: true}
	for i, fb := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if namesSeen[fb.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q appears more than once in the chain", prefix, fb.Name))
		}
		namesSeen[fb.Name] = true
		validateTranscriberName(prefix, fb.Name)
	}

	// The haassist backend borrows the Home Assistant connection when its own
	// entry does not carry one.
	for _, entry := range append([]ProviderEntry{cfg.Providers.Transcriber}, cfg.Providers.Fallbacks...) {
		if entry.Name == "haassist" && entry.BaseURL == "" && cfg.HomeAssistant.BaseURL == "" {
			errs = append(errs, errors.New("providers: haassist requires a base_url or a configured homeassistant.base_url"))
		}
	}

	// Home Assistant
	if cfg.HomeAssistant.BaseURL != "" && cfg.HomeAssistant.Token == "" {
		errs = append(errs, errors.New("homeassistant.token is required when homeassistant.base_url is set"))
	}
	if cfg.HomeAssistant.BaseURL == "" {
		slog.Warn("homeassistant.base_url is empty; recognised commands will not actuate anything")
	}

	return errors.Join(errs...)
}

// validateTranscriberName logs a warning if name is not found in
// [ValidTranscriberNames]. Unknown names may still be registered at runtime.
func validateTranscriberName(field, name string) {
	if slices.Contains(ValidTranscriberNames, name) {
		return
	}
	slog.Warn("unknown transcriber name, may be a typo or custom backend",
		"field", field,
		"name", name,
		"known", ValidTranscriberNames,
	)
}
