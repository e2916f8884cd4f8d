// Package vad implements the wake trigger for the entry panel: an
// energy-based spike detector with an adaptive ambient-noise baseline.
//
// The detector answers one question per audio block — "is this a spike worth
// waking the recorder for?" — using two conditions that must both hold:
//
//  1. The block's scaled peak-to-peak amplitude exceeds an absolute floor
//     derived from the configured sensitivity.
//  2. The amplitude exceeds the adaptive baseline by a fixed multiplier
//     (skipped while the baseline is still cold).
//
// The floor alone false-triggers as the room's ambient level drifts upward;
// the spike check alone false-triggers on steady loud noise with no sudden
// edge. Requiring both keeps the panel responsive without training data.
//
// All amplitudes in this package are [audio.ScaledLevel] units. The state
// machine's speech/silence thresholds use raw units and live elsewhere.
package vad

import (
	"sort"

	"github.com/MrWong99/entryhub/pkg/audio"
)

// DefaultBaselineWindow is the number of per-second energy readings retained
// for the adaptive baseline (~1 minute of ambient history).
const DefaultBaselineWindow = 60

// Baseline is a slowly-adapting estimate of the ambient room noise level.
// It keeps a circular buffer of recent energy readings and derives its value
// as the 75th percentile of the populated slots, so short spikes do not drag
// the ambient estimate upward.
//
// Baseline lives for the process lifetime and is never reset between
// recording sessions. It is not safe for concurrent use; the voice runner is
// its single owner.
type Baseline struct {
	levels []audio.ScaledLevel
	idx    int
	filled int
	value  audio.ScaledLevel
}

// NewBaseline creates a baseline over a circular window of the given size.
// A non-positive window falls back to [DefaultBaselineWindow].
func NewBaseline(window int) *Baseline {
	if window <= 0 {
		window = DefaultBaselineWindow
	}
	return &Baseline{levels: make([]audio.ScaledLevel, window)}
}

// Add appends an energy reading, overwriting the oldest slot once the window
// is full, and recomputes the percentile value.
func (b *Baseline) Add(level audio.ScaledLevel) {
	b.levels[b.idx] = level
	b.idx = (b.idx + 1) % len(b.levels)
	if b.filled < len(b.levels) {
		b.filled++
	}
	b.value = b.percentile()
}

// Value returns the current baseline estimate. It is zero until at least one
// reading has been added; callers treat zero as "cold start" and skip the
// spike comparison.
func (b *Baseline) Value() audio.ScaledLevel {
	return b.value
}

// Samples returns the number of populated slots.
func (b *Baseline) Samples() int {
	return b.filled
}

// percentile computes the 75th percentile of the populated slots. The result
// depends only on the set of retained values, not their insertion order.
func (b *Baseline) percentile() audio.ScaledLevel {
	if b.filled == 0 {
		return 0
	}
	sorted := make([]audio.ScaledLevel, b.filled)
	copy(sorted, b.levels[:b.filled])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(3*(b.filled-1))/4]
}
