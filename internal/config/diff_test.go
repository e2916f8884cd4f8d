package config_test

import (
	"testing"

	"github.com/MrWong99/entryhub/internal/config"
	"github.com/MrWong99/entryhub/internal/voice"
)

func sensitivity(v float64) *float64 {
	return &v
}

func baseConfig() *config.Config {
	return &config.Config{
		Panel: config.PanelConfig{Name: "front-door", LogLevel: config.LogInfo},
		Wake: config.WakeConfig{
			Mode:        voice.ModeThreshold,
			Sensitivity: sensitivity(0.3),
		},
		Providers: config.ProvidersConfig{
			Transcriber: config.ProviderEntry{Name: "haassist"},
		},
	}
}

func TestDiffNoChange(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	d := config.Diff(old, new)
	if d.Changed() {
		t.Errorf("Diff of identical configs = %+v, want no change", d)
	}
}

func TestDiffLogLevel(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Panel.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v, want log level change to debug", d)
	}
	if d.RestartRequired {
		t.Error("log level change should not require a restart")
	}
}

func TestDiffSensitivity(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Wake.Sensitivity = sensitivity(0.7)

	d := config.Diff(old, new)
	if !d.SensitivityChanged || d.NewSensitivity != 0.7 {
		t.Errorf("diff = %+v, want sensitivity change to 0.7", d)
	}
	if d.RestartRequired {
		t.Error("sensitivity change should not require a restart")
	}
}

func TestDiffSensitivityExplicitZero(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Wake.Sensitivity = sensitivity(0)

	d := config.Diff(old, new)
	if !d.SensitivityChanged || d.NewSensitivity != 0 {
		t.Errorf("diff = %+v, want sensitivity change to 0.0", d)
	}
}

func TestDiffSensitivityRemovedKeyHoldingDefault(t *testing.T) {
	// Dropping the key while it held the default is not a change the detector
	// would notice.
	old, new := baseConfig(), baseConfig()
	old.Wake.Sensitivity = nil

	d := config.Diff(old, new)
	if d.Changed() {
		t.Errorf("diff = %+v, want no change between nil and the default", d)
	}
}

func TestDiffMode(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Wake.Mode = voice.ModeTouch

	d := config.Diff(old, new)
	if !d.ModeChanged || d.NewMode != "touch" {
		t.Errorf("diff = %+v, want mode change to touch", d)
	}
	if d.RestartRequired {
		t.Error("mode change should not require a restart")
	}
}

func TestDiffRestartRequired(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"provider change", func(c *config.Config) { c.Providers.Transcriber.Name = "whisper" }},
		{"audio change", func(c *config.Config) { c.Audio.SampleRate = 48000 }},
		{"voice change", func(c *config.Config) { c.Voice.MaxRecordingMs = 5000 }},
		{"scheduler change", func(c *config.Config) { c.Scheduler.FastPollMs = 5 }},
		{"home assistant change", func(c *config.Config) { c.HomeAssistant.BaseURL = "http://other:8123" }},
		{"baseline window change", func(c *config.Config) { c.Wake.BaselineWindow = 120 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			old, new := baseConfig(), baseConfig()
			tc.mutate(new)

			d := config.Diff(old, new)
			if !d.RestartRequired {
				t.Errorf("diff = %+v, want RestartRequired", d)
			}
		})
	}
}
