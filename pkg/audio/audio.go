// Package audio defines the microphone source abstraction and the amplitude
// units shared by the wake detector and the voice state machine.
//
// The central abstraction is [Source]: a blocking-with-timeout reader of
// fixed-size blocks of signed 16-bit mono PCM. Implementations wrap a real
// capture peripheral (I2S microphone, ALSA device, network stream); the
// mock subpackage provides a scripted source for tests.
//
// Two distinct amplitude scales flow through the system and must never be
// compared directly:
//
//   - [RawLevel] — raw 16-bit peak-to-peak amplitude (0–65534). Used by the
//     state machine's speech/silence thresholds.
//   - [ScaledLevel] — RawLevel widened by ×65536 into the dynamic range the
//     spike detector's threshold constants are calibrated against.
//
// They are separate named types so that a cross-scale comparison is a compile
// error rather than a latent calibration bug.
package audio

import "time"

// Source produces blocks of signed 16-bit mono samples at a fixed sample rate.
//
// ReadBlock never blocks longer than timeout. It returns n < len(buf) when the
// peripheral has not buffered enough data in time, and n == 0 on timeout or
// when capture has not started. A source that failed to open must keep
// returning (0, nil) rather than an error: missing audio is a degraded mode,
// not a fatal condition, and the rest of the panel stays usable.
type Source interface {
	// ReadBlock fills buf with captured samples and returns the number of
	// valid samples written. The only side effect is advancing the
	// peripheral's internal read cursor.
	ReadBlock(buf []int16, timeout time.Duration) (int, error)

	// SampleRate returns the capture rate in Hz (e.g. 16000).
	SampleRate() int
}

// RawLevel is a peak-to-peak amplitude in raw 16-bit sample units (0–65534).
type RawLevel int32

// ScaledLevel is a RawLevel widened by ×65536, the unit the spike detector's
// adaptive baseline and threshold constants operate in.
type ScaledLevel int64

// scaleShift widens a 16-bit peak-to-peak measurement into the 32-bit-range
// units used by the wake threshold constants.
const scaleShift = 16

// Scaled converts a raw peak-to-peak amplitude into spike-detector units.
func (l RawLevel) Scaled() ScaledLevel {
	return ScaledLevel(int64(l) << scaleShift)
}

// PeakToPeak returns max(sample) − min(sample) over the block. An empty block
// has zero amplitude.
func PeakToPeak(samples []int16) RawLevel {
	if len(samples) == 0 {
		return 0
	}
	minV, maxV := samples[0], samples[0]
	for _, s := range samples[1:] {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	return RawLevel(int32(maxV) - int32(minV))
}
