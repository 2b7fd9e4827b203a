// ABOUTME: Local sound card output using oto
// ABOUTME: oto pulls PCM bytes from a reader that calls the source for each request
package transport

import (
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/ebitengine/oto/v3"
)

// Device plays a Source on the default audio device. oto calls the source
// from its own goroutine whenever the hardware needs data.
type Device struct {
	otoCtx *oto.Context
	player *oto.Player
	reader *pcmReader
}

// OpenDevice initializes the audio device and starts pulling from source
func OpenDevice(source Source, sampleRate, periodMs int) (*Device, error) {
	if periodMs <= 0 {
		periodMs = DefaultPeriodMs
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(periodMs) * time.Millisecond,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	reader := newPCMReader(source, audio.FramesPerPeriod(sampleRate, periodMs))
	player := otoCtx.NewPlayer(reader)
	player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels, %dms period", sampleRate, audio.Channels, periodMs)

	return &Device{
		otoCtx: otoCtx,
		player: player,
		reader: reader,
	}, nil
}

// Close stops playback
func (d *Device) Close() error {
	if d.player != nil {
		if err := d.player.Close(); err != nil {
			log.Printf("Error closing audio player: %v", err)
		}
		d.player = nil
	}
	if d.otoCtx != nil {
		if err := d.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend audio context: %w", err)
		}
	}
	return nil
}

// pcmReader adapts a Source to the io.Reader oto pulls from. Every Read is
// served in full, with silence when the source has nothing.
type pcmReader struct {
	source Source
	pcm    []int16
}

func newPCMReader(source Source, frames int) *pcmReader {
	return &pcmReader{
		source: source,
		pcm:    make([]int16, frames*audio.Channels),
	}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	frames := len(p) / audio.BytesPerFrame
	if frames == 0 {
		return 0, nil
	}

	samples := frames * audio.Channels
	if samples > len(r.pcm) {
		// oto sized its request above one period; grow once and keep it
		r.pcm = make([]int16, samples)
	}

	r.source.Fill(r.pcm[:samples], frames)
	audio.PutPCM16(p, r.pcm[:samples])
	return frames * audio.BytesPerFrame, nil
}
