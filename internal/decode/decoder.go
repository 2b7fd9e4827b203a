// ABOUTME: Decoder interface and format selection
// ABOUTME: Picks a decoder by file extension and wraps it for the playback rate
package decode

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// DefaultCacheBytes is the default working buffer size for reading from a file
const DefaultCacheBytes = 8192

// ErrUnsupportedFormat is returned for files no decoder handles
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder produces interleaved stereo 16-bit PCM from one file
type Decoder interface {
	// Read fills pcm with up to len(pcm) samples. It only returns fewer at
	// the end of the stream; io.EOF follows once nothing is left.
	Read(pcm []int16) (int, error)

	// SampleRate returns the native sample rate of the stream
	SampleRate() int

	// Close closes the decoder and its file
	Close() error
}

// Open creates the decoder matching name's extension. The decoder takes
// ownership of f and uses cache as its working buffer. On error f is closed.
func Open(f io.ReadCloser, name string, cache []byte) (Decoder, error) {
	var (
		dec Decoder
		err error
	)

	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		dec, err = NewMP3(f, cache)
	case ".flac", ".fla":
		dec, err = NewFLAC(f)
	case ".ogg", ".oga":
		dec, err = NewVorbis(f, cache)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, path.Ext(name))
	}

	if err != nil {
		f.Close()
		return nil, err
	}
	return dec, nil
}

// fill calls read until pcm is full, the stream ends or read fails
func fill(pcm []int16, read func([]int16) (int, error)) (int, error) {
	filled := 0
	for filled < len(pcm) {
		n, err := read(pcm[filled:])
		filled += n
		if err == io.EOF {
			if filled > 0 {
				return filled, nil
			}
			return 0, io.EOF
		}
		if err != nil {
			return filled, err
		}
		if n == 0 {
			break
		}
	}
	return filled, nil
}
