// ABOUTME: Opus audio encoder for bandwidth-efficient streaming
// ABOUTME: Wraps libopus to encode one transport period into one packet
package transport

import (
	"fmt"
	"log"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the largest packet libopus produces
const maxOpusPacket = 4000

// OpusEncoder wraps the Opus encoder
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel per frame
	packet     []byte
}

// OpusPeriodSupported reports whether a period of periodMs at sampleRate maps
// to a legal Opus frame
func OpusPeriodSupported(sampleRate, periodMs int) bool {
	if sampleRate != 48000 {
		return false
	}
	switch periodMs {
	case 5, 10, 20, 40, 60:
		return true
	}
	return false
}

// NewOpusEncoder creates a new Opus encoder.
// frameSize is in samples per channel (e.g., 960 for 20ms at 48kHz)
func NewOpusEncoder(sampleRate, channels, frameSize int) (*OpusEncoder, error) {
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// 128 kbps for stereo
	bitrate := 64000 * channels
	if err := encoder.SetBitrate(bitrate); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
		packet:     make([]byte, maxOpusPacket),
	}, nil
}

// Encode encodes one frame of interleaved PCM. The returned packet is only
// valid until the next call.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != e.frameSize*e.channels {
		return nil, fmt.Errorf("opus frame must be %d samples, got %d", e.frameSize*e.channels, len(pcm))
	}

	n, err := e.encoder.Encode(pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}

	return e.packet[:n], nil
}
