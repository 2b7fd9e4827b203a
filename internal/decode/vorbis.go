// ABOUTME: Ogg Vorbis file decoder
// ABOUTME: Decodes Ogg Vorbis streams to stereo int16 samples using oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/jfreymuth/oggvorbis"
)

// Vorbis decodes an Ogg Vorbis file
type Vorbis struct {
	file     io.ReadCloser
	reader   *oggvorbis.Reader
	channels int
	scratch  []float32
	eof      bool
}

// NewVorbis creates a new Ogg Vorbis decoder reading from f. The float
// scratch buffer is sized from the cache.
func NewVorbis(f io.ReadCloser, cache []byte) (*Vorbis, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}

	channels := reader.Channels()
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: %d channel Vorbis", ErrUnsupportedFormat, channels)
	}

	size := len(cache) / 4
	if size < 2 {
		size = DefaultCacheBytes / 4
	}

	return &Vorbis{
		file:     f,
		reader:   reader,
		channels: channels,
		scratch:  make([]float32, size),
	}, nil
}

func (d *Vorbis) Read(pcm []int16) (int, error) {
	if d.eof {
		return 0, io.EOF
	}

	n, err := fill(pcm, d.readChunk)
	if err == io.EOF {
		d.eof = true
	}
	return n, err
}

func (d *Vorbis) readChunk(pcm []int16) (int, error) {
	// Output frames this call can hold
	frames := len(pcm) / audio.Channels
	if frames == 0 {
		return 0, nil
	}
	want := frames * d.channels
	if want > len(d.scratch) {
		want = len(d.scratch) - len(d.scratch)%d.channels
	}

	n, err := d.reader.Read(d.scratch[:want])

	out := 0
	for i := 0; i+d.channels <= n; i += d.channels {
		left := audio.SampleFromFloat(d.scratch[i])
		right := left
		if d.channels == 2 {
			right = audio.SampleFromFloat(d.scratch[i+1])
		}
		pcm[out] = left
		pcm[out+1] = right
		out += 2
	}

	if err == io.EOF {
		return out, io.EOF
	}
	if err != nil {
		return out, fmt.Errorf("vorbis decode error: %w", err)
	}
	return out, nil
}

func (d *Vorbis) SampleRate() int { return d.reader.SampleRate() }

func (d *Vorbis) Close() error {
	return d.file.Close()
}
