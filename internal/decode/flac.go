// ABOUTME: FLAC file decoder
// ABOUTME: Decodes FLAC frames to stereo int16 samples using mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLAC decodes a FLAC file frame by frame
type FLAC struct {
	file     io.ReadCloser
	stream   *flac.Stream
	channels int
	bitDepth int

	// Partially consumed frame
	frame *frame.Frame
	pos   int
}

// NewFLAC creates a new FLAC decoder reading from f
func NewFLAC(f io.ReadCloser) (*FLAC, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	channels := int(stream.Info.NChannels)
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channel FLAC", ErrUnsupportedFormat, channels)
	}

	return &FLAC{
		file:     f,
		stream:   stream,
		channels: channels,
		bitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

func (d *FLAC) Read(pcm []int16) (int, error) {
	filled := 0

	for filled+1 < len(pcm) {
		if d.frame == nil || d.pos >= int(d.frame.BlockSize) {
			fr, err := d.stream.ParseNext()
			if err == io.EOF {
				if filled > 0 {
					return filled, nil
				}
				return 0, io.EOF
			}
			if err != nil {
				return filled, fmt.Errorf("flac decode error: %w", err)
			}
			d.frame = fr
			d.pos = 0
		}

		left := d.frame.Subframes[0].Samples
		right := left
		if d.channels == 2 {
			right = d.frame.Subframes[1].Samples
		}

		for d.pos < int(d.frame.BlockSize) && filled+1 < len(pcm) {
			pcm[filled] = audio.SampleFromDepth(left[d.pos], d.bitDepth)
			pcm[filled+1] = audio.SampleFromDepth(right[d.pos], d.bitDepth)
			filled += 2
			d.pos++
		}
	}

	return filled, nil
}

func (d *FLAC) SampleRate() int { return int(d.stream.Info.SampleRate) }

func (d *FLAC) Close() error {
	return d.file.Close()
}
