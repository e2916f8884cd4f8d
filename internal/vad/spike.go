package vad

import (
	"log/slog"
	"time"

	"github.com/MrWong99/entryhub/pkg/audio"
)

// Calibrated defaults. All of them are overridable via [Config]; the values
// themselves come from tuning on the panel's INMP441 microphone.
const (
	// DefaultMaxThreshold is the absolute-floor threshold at sensitivity 0,
	// in scaled units.
	DefaultMaxThreshold audio.ScaledLevel = 250_000_000

	// DefaultSensitivity maps to a floor of 250M × (1 − 0.3×0.9) ≈ 182M.
	DefaultSensitivity = 0.3

	// DefaultSpikeMultiplier is how far above the ambient baseline a block
	// must reach to count as a spike.
	DefaultSpikeMultiplier = 2.0

	// DefaultCooldown suppresses re-triggering on the tail of one loud event.
	DefaultCooldown = 2 * time.Second

	// DefaultBaselineUpdateInterval is how often an amplitude reading is fed
	// into the adaptive baseline.
	DefaultBaselineUpdateInterval = time.Second
)

// Config holds the tunables for a [SpikeDetector]. Zero-value fields are
// replaced with the calibrated defaults.
type Config struct {
	// Sensitivity is the 0.0–1.0 wake sensitivity from the panel settings.
	// 0.0 requires the loudest input (highest floor), 1.0 the quietest.
	// Nil takes DefaultSensitivity; an explicit 0.0 keeps the full floor.
	Sensitivity *float64

	// MaxThreshold is the absolute floor at sensitivity 0. The effective
	// floor is MaxThreshold × (1 − Sensitivity×0.9).
	MaxThreshold audio.ScaledLevel

	// SpikeMultiplier is the required ratio over the adaptive baseline.
	SpikeMultiplier float64

	// Cooldown is the quiet period after a reported trigger during which
	// Evaluate returns false unconditionally.
	Cooldown time.Duration

	// BaselineUpdateInterval is the cadence of baseline feeding.
	BaselineUpdateInterval time.Duration

	// BaselineWindow is the circular-buffer size of the baseline.
	BaselineWindow int

	// Now overrides the time source. Tests use this to drive the cooldown
	// and baseline cadence through simulated time; leave nil in production.
	Now func() time.Time
}

// SpikeDetector decides, block by block, whether the panel should wake the
// recorder. It owns the process-lifetime [Baseline] and the trigger cooldown.
//
// SpikeDetector is not safe for concurrent use; the voice runner is its
// single owner.
type SpikeDetector struct {
	threshold   audio.ScaledLevel
	sensitivity float64
	maxThresh   audio.ScaledLevel
	multiplier  float64
	cooldown    time.Duration

	baseline       *Baseline
	updateInterval time.Duration
	lastUpdate     time.Time

	lastLevel     audio.ScaledLevel
	lastTrigger   time.Time
	cooldownUntil time.Time

	// now is replaceable in tests to drive simulated time.
	now func() time.Time
}

// NewSpikeDetector creates a detector with the given config. Zero-value
// fields take the calibrated defaults. A nil Sensitivity takes
// DefaultSensitivity; an explicit value, 0.0 included, is honoured as given,
// so construction and a later [SpikeDetector.SetSensitivity] with the same
// value derive the same threshold.
func NewSpikeDetector(cfg Config) *SpikeDetector {
	sensitivity := DefaultSensitivity
	if cfg.Sensitivity != nil {
		sensitivity = *cfg.Sensitivity
	}
	if cfg.MaxThreshold == 0 {
		cfg.MaxThreshold = DefaultMaxThreshold
	}
	if cfg.SpikeMultiplier == 0 {
		cfg.SpikeMultiplier = DefaultSpikeMultiplier
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.BaselineUpdateInterval == 0 {
		cfg.BaselineUpdateInterval = DefaultBaselineUpdateInterval
	}
	d := &SpikeDetector{
		sensitivity:    clamp01(sensitivity),
		maxThresh:      cfg.MaxThreshold,
		multiplier:     cfg.SpikeMultiplier,
		cooldown:       cfg.Cooldown,
		baseline:       NewBaseline(cfg.BaselineWindow),
		updateInterval: cfg.BaselineUpdateInterval,
		now:            time.Now,
	}
	if cfg.Now != nil {
		d.now = cfg.Now
	}
	d.threshold = deriveThreshold(d.maxThresh, d.sensitivity)
	return d
}

// Evaluate reports whether the block is a wake trigger. It also feeds the
// adaptive baseline once per update interval, regardless of cooldown state or
// the trigger outcome, so the ambient estimate keeps adapting while the
// detector is quiet.
//
// The trigger decision compares against the baseline as it stood before this
// block: a spike must stand out from the ambient history, not from itself.
//
// Empty blocks (a silent or never-opened source) are ignored entirely.
func (d *SpikeDetector) Evaluate(block []int16) bool {
	if len(block) == 0 {
		return false
	}

	now := d.now()
	level := audio.PeakToPeak(block).Scaled()
	d.lastLevel = level

	triggered := false
	if !now.Before(d.cooldownUntil) && level > d.threshold {
		bl := d.baseline.Value()
		if bl == 0 || float64(level) > float64(bl)*d.multiplier {
			triggered = true
			d.lastTrigger = now
			d.cooldownUntil = now.Add(d.cooldown)
			slog.Info("wake trigger detected",
				"level", int64(level),
				"threshold", int64(d.threshold),
				"baseline", int64(bl),
			)
		}
	}

	if d.lastUpdate.IsZero() || now.Sub(d.lastUpdate) >= d.updateInterval {
		d.baseline.Add(level)
		d.lastUpdate = now
	}
	return triggered
}

// SetSensitivity updates the 0.0–1.0 sensitivity and re-derives the absolute
// floor. Called when the panel settings change at runtime.
func (d *SpikeDetector) SetSensitivity(s float64) {
	d.sensitivity = clamp01(s)
	d.threshold = deriveThreshold(d.maxThresh, d.sensitivity)
	slog.Info("wake sensitivity updated",
		"sensitivity", d.sensitivity,
		"threshold", int64(d.threshold),
	)
}

// Sensitivity returns the current 0.0–1.0 sensitivity setting.
func (d *SpikeDetector) Sensitivity() float64 { return d.sensitivity }

// Threshold returns the derived absolute floor in scaled units.
func (d *SpikeDetector) Threshold() audio.ScaledLevel { return d.threshold }

// LastLevel returns the amplitude of the most recently evaluated block.
func (d *SpikeDetector) LastLevel() audio.ScaledLevel { return d.lastLevel }

// BaselineValue returns the current adaptive baseline estimate.
func (d *SpikeDetector) BaselineValue() audio.ScaledLevel { return d.baseline.Value() }

// deriveThreshold maps sensitivity onto the absolute floor: sensitivity 0
// keeps the full MaxThreshold, sensitivity 1 lowers it to 10%.
func deriveThreshold(max audio.ScaledLevel, sensitivity float64) audio.ScaledLevel {
	return audio.ScaledLevel(float64(max) * (1 - sensitivity*0.9))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
