// ABOUTME: Sample rate adapter for decoders
// ABOUTME: Wraps a decoder whose native rate differs from the playback rate
package decode

import (
	"io"
	"log"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/Resonate-Protocol/cardplayer/internal/audio/resample"
)

// Resampled converts a decoder's output to a fixed sample rate
type Resampled struct {
	source    Decoder
	resampler *resample.Resampler
	rate      int
	input     []int16
	output    []int16
	pending   []int16
	eof       bool
}

// Resample wraps dec so it produces rate Hz. Decoders already at rate are
// returned unchanged.
func Resample(dec Decoder, rate int) Decoder {
	if rate <= 0 || dec.SampleRate() == rate {
		return dec
	}

	log.Printf("Resampling %d Hz to %d Hz", dec.SampleRate(), rate)

	return &Resampled{
		source:    dec,
		resampler: resample.New(dec.SampleRate(), rate, audio.Channels),
		rate:      rate,
	}
}

func (r *Resampled) Read(pcm []int16) (int, error) {
	if r.input == nil {
		r.input = make([]int16, r.resampler.InputSamplesNeeded(len(pcm)))
		r.output = make([]int16, r.resampler.OutputSamplesNeeded(len(r.input)))
	}

	filled := 0
	for filled < len(pcm) {
		if len(r.pending) == 0 {
			if r.eof {
				break
			}
			n, err := r.source.Read(r.input)
			if err == io.EOF {
				r.eof = true
			} else if err != nil {
				return filled, err
			} else if n == 0 {
				break
			}
			out := r.resampler.Resample(r.input[:n], r.output)
			r.pending = r.output[:out]
			continue
		}

		n := copy(pcm[filled:], r.pending)
		r.pending = r.pending[n:]
		filled += n
	}

	if filled == 0 && r.eof {
		return 0, io.EOF
	}
	return filled, nil
}

func (r *Resampled) SampleRate() int { return r.rate }

func (r *Resampled) Close() error {
	return r.source.Close()
}
