package config

import "reflect"

// ConfigDiff describes what changed between two configs. Log level and the
// wake tunables are safe to apply live; everything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SensitivityChanged bool
	NewSensitivity     float64

	ModeChanged bool
	NewMode     string

	// RestartRequired is set when a section that cannot be hot-reloaded
	// (audio, voice, scheduler, providers, homeassistant) changed.
	RestartRequired bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SensitivityChanged || d.ModeChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Panel.LogLevel != new.Panel.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Panel.LogLevel
	}

	// Compare what the detector would actually use, so removing the key when
	// it held the default is not reported as a change.
	oldSens := effectiveSensitivity(old.Wake.Sensitivity)
	newSens := effectiveSensitivity(new.Wake.Sensitivity)
	if oldSens != newSens {
		d.SensitivityChanged = true
		d.NewSensitivity = newSens
	}

	if old.Wake.Mode != new.Wake.Mode {
		d.ModeChanged = true
		d.NewMode = string(new.Wake.Mode)
	}

	if !reflect.DeepEqual(old.Audio, new.Audio) ||
		!reflect.DeepEqual(old.Voice, new.Voice) ||
		!reflect.DeepEqual(old.Scheduler, new.Scheduler) ||
		!reflect.DeepEqual(old.Providers, new.Providers) ||
		!reflect.DeepEqual(old.HomeAssistant, new.HomeAssistant) {
		d.RestartRequired = true
	}

	// The detector-side wake tunables beyond sensitivity also need a restart.
	oldWake, newWake := old.Wake, new.Wake
	oldWake.Sensitivity, newWake.Sensitivity = nil, nil
	oldWake.Mode, newWake.Mode = "", ""
	if oldWake != newWake {
		d.RestartRequired = true
	}

	return d
}
