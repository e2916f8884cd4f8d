// Package config provides the configuration schema, loader, file watcher, and
// transcriber registry for the entry panel.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/entryhub/internal/vad"
	"github.com/MrWong99/entryhub/internal/voice"
	"github.com/MrWong99/entryhub/pkg/audio"
)

// LogLevel controls log verbosity for the panel daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l onto the slog level. Unrecognised levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for the panel.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Panel         PanelConfig         `yaml:"panel"`
	Audio         AudioConfig         `yaml:"audio"`
	Wake          WakeConfig          `yaml:"wake"`
	Voice         VoiceConfig         `yaml:"voice"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Providers     ProvidersConfig     `yaml:"providers"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
}

// PanelConfig holds identity, network, and logging settings.
type PanelConfig struct {
	// Name identifies this panel in logs and status reports (e.g. "front-door").
	Name string `yaml:"name"`

	// ListenAddr is the TCP address the admin HTTP server listens on
	// (metrics and health endpoints). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds the capture parameters. All zero values take the
// defaults calibrated for the panel's 16 kHz mono microphone.
type AudioConfig struct {
	// Device is the path of the PCM byte stream to capture from: a FIFO fed
	// by arecord, a character device, or "-" for stdin. Empty runs the panel
	// without audio (degraded mode, manual triggers only).
	Device string `yaml:"device"`

	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// BlockSamples is the number of samples fetched per read. Default: 512.
	BlockSamples int `yaml:"block_samples"`

	// ReadTimeoutMs bounds a single non-blocking read. Default: 5.
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// WakeConfig tunes the spike detector and wake mode.
type WakeConfig struct {
	// Mode selects how the panel wakes: threshold, touch, button, or disabled.
	Mode voice.Mode `yaml:"mode"`

	// Sensitivity in [0, 1]. Higher wakes on quieter spikes. Omitted takes
	// the default 0.3; an explicit 0.0 is the least sensitive setting.
	Sensitivity *float64 `yaml:"sensitivity"`

	// CooldownMs suppresses re-triggering after a spike. Default: 2000.
	CooldownMs int `yaml:"cooldown_ms"`

	// BaselineUpdateMs is the ambient baseline sampling cadence. Default: 1000.
	BaselineUpdateMs int `yaml:"baseline_update_ms"`

	// BaselineWindow is the number of baseline samples kept. Default: 60.
	BaselineWindow int `yaml:"baseline_window"`

	// SpikeMultiplier is how far above baseline a block must rise to count
	// as a spike. Default: 2.0.
	SpikeMultiplier float64 `yaml:"spike_multiplier"`
}

// VoiceConfig tunes the capture state machine. Durations are in
// milliseconds; thresholds are raw peak-to-peak amplitude units.
type VoiceConfig struct {
	TriggerCooldownMs      int `yaml:"trigger_cooldown_ms"`
	WaitForSpeechTimeoutMs int `yaml:"wait_for_speech_timeout_ms"`
	SilenceDurationMs      int `yaml:"silence_duration_ms"`
	MinRecordingMs         int `yaml:"min_recording_ms"`
	MaxRecordingMs         int `yaml:"max_recording_ms"`
	SpeechThreshold        int `yaml:"speech_threshold"`
	SilenceThreshold       int `yaml:"silence_threshold"`
	MinSpeechLevel         int `yaml:"min_speech_level"`
	MinMeaningfulMs        int `yaml:"min_meaningful_ms"`
	TranscribeTimeoutMs    int `yaml:"transcribe_timeout_ms"`
}

// SchedulerConfig tunes the runner's polling cadences, in milliseconds.
type SchedulerConfig struct {
	FastPollMs       int `yaml:"fast_poll_ms"`
	SlowPollMs       int `yaml:"slow_poll_ms"`
	UITickMs         int `yaml:"ui_tick_ms"`
	StatusIntervalMs int `yaml:"status_interval_ms"`
}

// ProvidersConfig declares the transcription chain: a primary backend plus
// ordered fallbacks, each selected by name from the [Registry].
type ProvidersConfig struct {
	// Transcriber is the preferred speech-to-text backend.
	Transcriber ProviderEntry `yaml:"transcriber"`

	// Fallbacks are tried in order when the primary fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Breaker tunes the per-backend circuit breakers.
	Breaker BreakerConfig `yaml:"breaker"`
}

// ProviderEntry is the common configuration block shared by all transcriber
// backends. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered backend (e.g. "haassist", "whisper", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key or token for the backend if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the backend (e.g. "whisper-1").
	Model string `yaml:"model"`

	// Language hints the expected speech language (e.g. "en").
	Language string `yaml:"language"`

	// Pipeline selects a specific Assist pipeline id. Empty uses the
	// server's preferred pipeline. Only meaningful for "haassist".
	Pipeline string `yaml:"pipeline"`

	// TimeoutMs bounds a single request against this backend.
	TimeoutMs int `yaml:"timeout_ms"`

	// Options holds backend-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// BreakerConfig tunes the circuit breaker guarding each transcriber backend.
type BreakerConfig struct {
	// MaxFailures before the breaker opens. Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeoutMs is how long the breaker stays open. Default: 30000.
	ResetTimeoutMs int `yaml:"reset_timeout_ms"`

	// HalfOpenMax probe calls allowed while half-open. Default: 3.
	HalfOpenMax int `yaml:"half_open_max"`
}

// HomeAssistantConfig holds the connection to the Home Assistant instance
// that actuates locks, covers, lights, and scenes.
type HomeAssistantConfig struct {
	// BaseURL of the instance (e.g. "http://homeassistant.local:8123").
	BaseURL string `yaml:"base_url"`

	// Token is a long-lived access token.
	Token string `yaml:"token"`

	// TimeoutMs bounds a single REST call. Default: 10000.
	TimeoutMs int `yaml:"timeout_ms"`
}

// msDur converts a millisecond count to a duration, treating zero and
// negative values as unset.
func msDur(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// effectiveSensitivity resolves an optional wake sensitivity onto the value
// the detector will use.
func effectiveSensitivity(s *float64) float64 {
	if s == nil {
		return vad.DefaultSensitivity
	}
	return *s
}

// Rate returns the configured sample rate or the 16 kHz default.
func (a AudioConfig) Rate() int {
	if a.SampleRate > 0 {
		return a.SampleRate
	}
	return 16000
}

// DetectorConfig maps the wake section onto the spike detector's tunables.
// Zero fields stay zero so the detector applies its own defaults.
func (c *Config) DetectorConfig() vad.Config {
	return vad.Config{
		Sensitivity:            c.Wake.Sensitivity,
		SpikeMultiplier:        c.Wake.SpikeMultiplier,
		Cooldown:               msDur(c.Wake.CooldownMs),
		BaselineUpdateInterval: msDur(c.Wake.BaselineUpdateMs),
		BaselineWindow:         c.Wake.BaselineWindow,
	}
}

// MachineConfig maps the wake mode and voice section onto the state machine
// tunables. Zero fields stay zero so the machine applies its own defaults.
func (c *Config) MachineConfig() voice.MachineConfig {
	return voice.MachineConfig{
		Mode:                 c.Wake.Mode,
		TriggerCooldown:      msDur(c.Voice.TriggerCooldownMs),
		WaitForSpeechTimeout: msDur(c.Voice.WaitForSpeechTimeoutMs),
		SilenceDuration:      msDur(c.Voice.SilenceDurationMs),
		MinRecording:         msDur(c.Voice.MinRecordingMs),
		MaxRecording:         msDur(c.Voice.MaxRecordingMs),
		SpeechThreshold:      audio.RawLevel(c.Voice.SpeechThreshold),
		SilenceThreshold:     audio.RawLevel(c.Voice.SilenceThreshold),
		MinSpeechLevel:       audio.RawLevel(c.Voice.MinSpeechLevel),
		MinMeaningful:        msDur(c.Voice.MinMeaningfulMs),
		TranscribeTimeout:    msDur(c.Voice.TranscribeTimeoutMs),
	}
}

// RunnerConfig maps the audio and scheduler sections onto the runner's
// tunables. Zero fields stay zero so the runner applies its own defaults.
func (c *Config) RunnerConfig() voice.RunnerConfig {
	return voice.RunnerConfig{
		FastPoll:       msDur(c.Scheduler.FastPollMs),
		SlowPoll:       msDur(c.Scheduler.SlowPollMs),
		UITick:         msDur(c.Scheduler.UITickMs),
		StatusInterval: msDur(c.Scheduler.StatusIntervalMs),
		BlockSamples:   c.Audio.BlockSamples,
		ReadTimeout:    msDur(c.Audio.ReadTimeoutMs),
	}
}
