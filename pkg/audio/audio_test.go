package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/entryhub/pkg/audio"
)

func TestPeakToPeak(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    audio.RawLevel
	}{
		{name: "empty block", samples: nil, want: 0},
		{name: "flat silence", samples: []int16{0, 0, 0, 0}, want: 0},
		{name: "dc offset only", samples: []int16{100, 100, 100}, want: 0},
		{name: "symmetric swing", samples: []int16{-250, 250, -250, 250}, want: 500},
		{name: "asymmetric swing", samples: []int16{-10, 40, 5}, want: 50},
		{name: "full scale", samples: []int16{-32768, 32767}, want: 65535},
		{name: "single sample", samples: []int16{1234}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audio.PeakToPeak(tt.samples); got != tt.want {
				t.Errorf("PeakToPeak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRawLevelScaled(t *testing.T) {
	// The wake threshold constants are calibrated against raw × 65536.
	if got := audio.RawLevel(500).Scaled(); got != 32_768_000 {
		t.Errorf("Scaled() = %d, want 32768000", got)
	}
	// Full-scale input must not overflow the scaled unit.
	if got := audio.RawLevel(65535).Scaled(); got != 65535*65536 {
		t.Errorf("Scaled() full scale = %d, want %d", got, int64(65535)*65536)
	}
}

func TestEncodeWAV(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767}
	b := audio.EncodeWAV(samples, 16000)

	if len(b) != 44+len(samples)*2 {
		t.Fatalf("EncodeWAV length = %d, want %d", len(b), 44+len(samples)*2)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q %q", b[0:4], b[8:12])
	}
	if rate := binary.LittleEndian.Uint32(b[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(b[40:44]); dataLen != uint32(len(samples)*2) {
		t.Errorf("data length = %d, want %d", dataLen, len(samples)*2)
	}
	if got := int16(binary.LittleEndian.Uint16(b[46:48])); got != 1000 {
		t.Errorf("second sample = %d, want 1000", got)
	}
}

func TestPCMBytesRoundTrip(t *testing.T) {
	samples := []int16{-32768, -1, 0, 1, 32767}
	b := audio.PCMBytes(samples)
	if len(b) != len(samples)*2 {
		t.Fatalf("PCMBytes length = %d, want %d", len(b), len(samples)*2)
	}
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(b[i*2:]))
		if got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}
