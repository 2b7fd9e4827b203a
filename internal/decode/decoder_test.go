// ABOUTME: Tests for decoder selection and adapters
// ABOUTME: Tests format dispatch, chunk filling and resampling wrapper
package decode

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// closeTracker records whether Close was called
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

// rampDecoder yields an increasing sample sequence of a fixed length
type rampDecoder struct {
	rate   int
	total  int
	pos    int
	maxOut int
	closed bool
}

func (d *rampDecoder) Read(pcm []int16) (int, error) {
	if d.pos >= d.total {
		return 0, io.EOF
	}
	n := len(pcm)
	if d.maxOut > 0 && n > d.maxOut {
		n = d.maxOut
	}
	if n > d.total-d.pos {
		n = d.total - d.pos
	}
	for i := 0; i < n; i++ {
		pcm[i] = int16(d.pos + i)
	}
	d.pos += n
	return n, nil
}

func (d *rampDecoder) SampleRate() int { return d.rate }

func (d *rampDecoder) Close() error {
	d.closed = true
	return nil
}

func TestOpenUnsupportedFormat(t *testing.T) {
	f := &closeTracker{Reader: strings.NewReader("data")}

	dec, err := Open(f, "notes.txt", nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if dec != nil {
		t.Error("expected nil decoder")
	}
	if !f.closed {
		t.Error("expected file to be closed on error")
	}
}

func TestOpenInvalidData(t *testing.T) {
	tests := []string{"broken.mp3", "broken.flac", "broken.ogg"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			f := &closeTracker{Reader: strings.NewReader("this is not audio")}

			if _, err := Open(f, name, make([]byte, 64)); err == nil {
				t.Fatal("expected decode error, got nil")
			}
			if !f.closed {
				t.Error("expected file to be closed on error")
			}
		})
	}
}

func TestFillStopsAtEOF(t *testing.T) {
	dec := &rampDecoder{rate: 44100, total: 10, maxOut: 4}

	pcm := make([]int16, 8)
	n, err := fill(pcm, dec.Read)
	if err != nil || n != 8 {
		t.Fatalf("expected 8 samples, got %d (%v)", n, err)
	}

	n, err = fill(pcm, dec.Read)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 tail samples, got %d (%v)", n, err)
	}

	n, err = fill(pcm, dec.Read)
	if err != io.EOF || n != 0 {
		t.Errorf("expected 0, io.EOF, got %d (%v)", n, err)
	}
}

func TestResampleSameRateIsPassthrough(t *testing.T) {
	dec := &rampDecoder{rate: 44100}
	if got := Resample(dec, 44100); got != Decoder(dec) {
		t.Error("expected decoder to be returned unchanged")
	}
}

func TestResampledDoublesRate(t *testing.T) {
	src := &rampDecoder{rate: 22050, total: 2000}
	dec := Resample(src, 44100)

	if dec.SampleRate() != 44100 {
		t.Errorf("expected 44100, got %d", dec.SampleRate())
	}

	total := 0
	pcm := make([]int16, 256)
	for {
		n, err := dec.Read(pcm)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if n == 0 {
			t.Fatal("read returned 0 without EOF")
		}
	}

	// 1000 frames in, about 2000 frames out
	frames := total / 2
	if frames < 1990 || frames > 2010 {
		t.Errorf("expected about 2000 frames, got %d", frames)
	}

	if err := dec.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !src.closed {
		t.Error("expected source to be closed")
	}
}
