// ABOUTME: Audio type definitions
// ABOUTME: Defines the playback PCM format and 16-bit sample packing helpers
package audio

import "encoding/binary"

const (
	// Playback format. Every decoder output is converted to this layout.
	DefaultSampleRate = 44100
	Channels          = 2
	BitDepth          = 16

	// BytesPerFrame is the size of one interleaved stereo 16-bit frame
	BytesPerFrame = Channels * BitDepth / 8
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM returns the playback format at the given sample rate
func PCM(sampleRate int) Format {
	return Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// FramesPerPeriod returns how many frames a period of periodMs covers
func FramesPerPeriod(sampleRate, periodMs int) int {
	return sampleRate * periodMs / 1000
}

// PutPCM16 packs samples little-endian into dst and returns the written slice.
// dst must hold at least 2*len(samples) bytes.
func PutPCM16(dst []byte, samples []int16) []byte {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return dst[:len(samples)*2]
}

// ReadPCM16 unpacks little-endian bytes into dst and returns the sample count
func ReadPCM16(dst []int16, data []byte) int {
	n := len(data) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return n
}

// SampleFromFloat converts a float sample in [-1, 1] to int16 with clipping
func SampleFromFloat(f float32) int16 {
	v := f * 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SampleFromDepth scales a signed sample of the given bit depth to 16 bits
func SampleFromDepth(sample int32, bitDepth int) int16 {
	shift := bitDepth - 16
	if shift > 0 {
		return int16(sample >> shift)
	}
	return int16(sample << -shift)
}
