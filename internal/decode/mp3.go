// ABOUTME: MP3 file decoder
// ABOUTME: Decodes MP3 files to stereo int16 samples using go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes an MP3 file. go-mp3 always outputs 16-bit stereo little-endian.
type MP3 struct {
	file    io.ReadCloser
	decoder *mp3.Decoder
	cache   []byte
	eof     bool
}

// NewMP3 creates a new MP3 decoder reading from f
func NewMP3(f io.ReadCloser, cache []byte) (*MP3, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// Reads stay frame aligned when the cache is a multiple of a frame
	if len(cache) < audio.BytesPerFrame {
		cache = make([]byte, DefaultCacheBytes)
	}
	cache = cache[:len(cache)-len(cache)%audio.BytesPerFrame]

	return &MP3{
		file:    f,
		decoder: decoder,
		cache:   cache,
	}, nil
}

func (d *MP3) Read(pcm []int16) (int, error) {
	if d.eof {
		return 0, io.EOF
	}

	n, err := fill(pcm, d.readChunk)
	if err == io.EOF {
		d.eof = true
	}
	return n, err
}

// readChunk decodes at most one cache buffer worth of samples
func (d *MP3) readChunk(pcm []int16) (int, error) {
	want := len(pcm) * 2
	want -= want % audio.BytesPerFrame
	if want == 0 {
		want = len(pcm) * 2
	}
	if want > len(d.cache) {
		want = len(d.cache)
	}

	n, err := d.decoder.Read(d.cache[:want])
	samples := audio.ReadPCM16(pcm, d.cache[:n])
	if err != nil && err != io.EOF {
		return samples, fmt.Errorf("mp3 decode error: %w", err)
	}
	if err == io.EOF {
		return samples, io.EOF
	}
	return samples, nil
}

func (d *MP3) SampleRate() int { return d.decoder.SampleRate() }

func (d *MP3) Close() error {
	return d.file.Close()
}
