// ABOUTME: Tests for audio type helpers
// ABOUTME: Tests PCM packing and sample depth conversion
package audio

import (
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := make([]byte, len(samples)*2)

	data := PutPCM16(buf, samples)
	if len(data) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(data))
	}

	// 256 little-endian is 0x00, 0x01
	if data[10] != 0x00 || data[11] != 0x01 {
		t.Errorf("expected little-endian bytes 00 01, got %02x %02x", data[10], data[11])
	}

	out := make([]int16, len(samples))
	if n := ReadPCM16(out, data); n != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), n)
	}
	for i := range samples {
		if out[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], out[i])
		}
	}
}

func TestReadPCM16ShortDestination(t *testing.T) {
	out := make([]int16, 1)
	if n := ReadPCM16(out, []byte{1, 0, 2, 0}); n != 1 {
		t.Errorf("expected 1 sample, got %d", n)
	}
}

func TestSampleFromDepth(t *testing.T) {
	tests := []struct {
		sample   int32
		depth    int
		expected int16
	}{
		{1000, 16, 1000},
		{8388607, 24, 32767},
		{-8388608, 24, -32768},
		{100, 8, 25600},
	}

	for _, tt := range tests {
		if got := SampleFromDepth(tt.sample, tt.depth); got != tt.expected {
			t.Errorf("SampleFromDepth(%d, %d): expected %d, got %d", tt.sample, tt.depth, tt.expected, got)
		}
	}
}

func TestSampleFromFloatClips(t *testing.T) {
	if got := SampleFromFloat(2.0); got != 32767 {
		t.Errorf("expected 32767, got %d", got)
	}
	if got := SampleFromFloat(-2.0); got != -32768 {
		t.Errorf("expected -32768, got %d", got)
	}
	if got := SampleFromFloat(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestFramesPerPeriod(t *testing.T) {
	if got := FramesPerPeriod(48000, 20); got != 960 {
		t.Errorf("expected 960, got %d", got)
	}
	if got := FramesPerPeriod(44100, 20); got != 882 {
		t.Errorf("expected 882, got %d", got)
	}
}
