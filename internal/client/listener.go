// ABOUTME: Listener that turns received audio chunks back into PCM
// ABOUTME: Decodes PCM or Opus chunks and writes 16-bit little-endian frames to an output
package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/Resonate-Protocol/cardplayer/internal/protocol"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is the largest Opus frame in samples per channel (120ms at 48kHz)
const maxOpusFrame = 5760

// ChunkDecoder turns one chunk payload into interleaved samples. The result
// is only valid until the next call.
type ChunkDecoder interface {
	Decode(payload []byte) ([]int16, error)
}

// NewChunkDecoder returns a decoder for the stream format
func NewChunkDecoder(start protocol.StreamStart) (ChunkDecoder, error) {
	switch start.Codec {
	case "pcm":
		if start.BitDepth != audio.BitDepth {
			return nil, fmt.Errorf("unsupported pcm bit depth %d", start.BitDepth)
		}
		return &pcmChunkDecoder{}, nil
	case "opus":
		dec, err := opus.NewDecoder(start.SampleRate, start.Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to create opus decoder: %w", err)
		}
		return &opusChunkDecoder{
			decoder:  dec,
			channels: start.Channels,
			pcm:      make([]int16, maxOpusFrame*start.Channels),
		}, nil
	}
	return nil, fmt.Errorf("unsupported codec %q", start.Codec)
}

type pcmChunkDecoder struct {
	pcm []int16
}

func (d *pcmChunkDecoder) Decode(payload []byte) ([]int16, error) {
	n := len(payload) / 2
	if cap(d.pcm) < n {
		d.pcm = make([]int16, n)
	}
	d.pcm = d.pcm[:n]
	audio.ReadPCM16(d.pcm, payload)
	return d.pcm, nil
}

type opusChunkDecoder struct {
	decoder  *opus.Decoder
	channels int
	pcm      []int16
}

func (d *opusChunkDecoder) Decode(payload []byte) ([]int16, error) {
	n, err := d.decoder.Decode(payload, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}
	return d.pcm[:n*d.channels], nil
}

// ListenerStats counts received audio
type ListenerStats struct {
	Chunks  uint64
	Samples uint64
	Errors  uint64
}

// Listener plays a connected client's stream into out
type Listener struct {
	client     *Client
	out        io.Writer
	onStart    func(protocol.StreamStart)
	onMetadata func(protocol.StreamMetadata)

	decoder ChunkDecoder
	bytes   []byte

	chunks  atomic.Uint64
	samples atomic.Uint64
	errors  atomic.Uint64
}

// ListenerConfig wires a listener to its client and output
type ListenerConfig struct {
	Client     *Client
	Output     io.Writer
	OnStart    func(protocol.StreamStart)
	OnMetadata func(protocol.StreamMetadata)
}

// NewListener creates a listener
func NewListener(config ListenerConfig) *Listener {
	return &Listener{
		client:     config.Client,
		out:        config.Output,
		onStart:    config.OnStart,
		onMetadata: config.OnMetadata,
	}
}

// Run plays until ctx is done or the connection ends
func (l *Listener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-l.client.Done():
			return io.EOF

		case start := <-l.client.StreamStart:
			if err := l.start(start); err != nil {
				return err
			}

		case meta := <-l.client.Metadata:
			log.Printf("Now playing: %s (%d/%d)", meta.Title, meta.Track, meta.TrackCount)
			if l.onMetadata != nil {
				l.onMetadata(meta)
			}

		case chunk := <-l.client.AudioChunks:
			// The client queues stream/start before any chunk read after it,
			// but select may pick the chunk first
			select {
			case start := <-l.client.StreamStart:
				if err := l.start(start); err != nil {
					return err
				}
			default:
			}
			if err := l.play(chunk); err != nil {
				return err
			}
		}
	}
}

func (l *Listener) start(start protocol.StreamStart) error {
	dec, err := NewChunkDecoder(start)
	if err != nil {
		return err
	}
	l.decoder = dec
	log.Printf("Stream started: %s %dHz %dch", start.Codec, start.SampleRate, start.Channels)
	if l.onStart != nil {
		l.onStart(start)
	}
	return nil
}

func (l *Listener) play(chunk AudioChunk) error {
	if l.decoder == nil {
		// Audio before stream/start cannot be interpreted
		l.errors.Add(1)
		return nil
	}

	pcm, err := l.decoder.Decode(chunk.Data)
	if err != nil {
		log.Printf("Dropping chunk: %v", err)
		l.errors.Add(1)
		return nil
	}

	if cap(l.bytes) < len(pcm)*2 {
		l.bytes = make([]byte, len(pcm)*2)
	}
	if _, err := l.out.Write(audio.PutPCM16(l.bytes, pcm)); err != nil {
		return fmt.Errorf("output write failed: %w", err)
	}

	l.chunks.Add(1)
	l.samples.Add(uint64(len(pcm)))
	return nil
}

// Stats returns a snapshot of the listener counters
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Chunks:  l.chunks.Load(),
		Samples: l.samples.Load(),
		Errors:  l.errors.Load(),
	}
}
