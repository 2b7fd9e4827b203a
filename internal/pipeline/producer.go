// ABOUTME: Producer loop that keeps the next buffer full
// ABOUTME: Decodes tracks in catalog order and moves to the next track at end of stream
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/cardplayer/internal/decode"
)

// ErrAllTracksFailed is returned when a full pass over the catalog produced
// no audio. The pipeline stays silent from then on.
var ErrAllTracksFailed = errors.New("no track in the catalog could be played")

// Catalog is the track list the producer walks through
type Catalog interface {
	Count() int
	NameAt(i int) string
	Current() int
	Advance() int
}

// OpenFunc opens the named track and returns a decoder using cache as its
// working buffer
type OpenFunc func(name string, cache []byte) (decode.Decoder, error)

// State describes what the producer is doing
type State int32

const (
	StateStarting State = iota
	StatePlaying
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StateIdle:
		return "idle"
	}
	return "unknown"
}

// ProducerConfig wires a producer to its channel, catalog and decoders
type ProducerConfig struct {
	Channel    *Channel
	Catalog    Catalog
	Open       OpenFunc
	CacheBytes int

	// OnTrack is called from the producer goroutine when a track starts
	// decoding
	OnTrack func(index int, name string)
}

// Producer decodes into the channel's next buffer. Run it on its own goroutine.
type Producer struct {
	channel *Channel
	catalog Catalog
	open    OpenFunc
	onTrack func(index int, name string)
	cache   []byte

	decoder decode.Decoder
	name    string

	// Samples published from the current track
	trackSamples int
	// Tracks in a row that produced nothing
	barren int

	state     atomic.Int32
	published atomic.Uint64
	ready     chan struct{}
	readyOnce sync.Once
}

// NewProducer creates a producer. The cache is allocated here and reused for
// every track.
func NewProducer(config ProducerConfig) *Producer {
	cacheBytes := config.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = decode.DefaultCacheBytes
	}

	return &Producer{
		channel: config.Channel,
		catalog: config.Catalog,
		open:    config.Open,
		onTrack: config.OnTrack,
		cache:   make([]byte, cacheBytes),
		ready:   make(chan struct{}),
	}
}

// State returns the current producer state
func (p *Producer) State() State {
	return State(p.state.Load())
}

// Published returns the total number of samples published
func (p *Producer) Published() uint64 {
	return p.published.Load()
}

// Ready is closed after the first publish, or when the producer goes idle
// without ever publishing
func (p *Producer) Ready() <-chan struct{} {
	return p.ready
}

func (p *Producer) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// Run decodes until ctx is done. It returns ctx.Err() on cancellation, or
// ErrAllTracksFailed when no track can be played; the consumer then only
// produces silence.
func (p *Producer) Run(ctx context.Context) error {
	defer p.closeDecoder()

	if err := p.openTrack(); err != nil {
		return p.goIdle(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.channel.NextReady() {
			if err := p.channel.WaitSlotFree(ctx); err != nil {
				return err
			}
			continue
		}

		n, err := p.decoder.Read(p.channel.NextBuffer())
		if n > 0 {
			p.channel.Publish(n)
			p.trackSamples += n
			p.published.Add(uint64(n))
			p.markReady()
		}
		if err == nil {
			if n > 0 {
				continue
			}
			// A read that makes no progress would spin; treat it as end of stream
			err = io.EOF
		}

		if !errors.Is(err, io.EOF) {
			log.Printf("Read error in %s: %v", p.name, err)
		}

		// The current buffer may still hold the tail of this track; the
		// next chunk simply comes from the following file
		if err := p.nextTrack(); err != nil {
			return p.goIdle(err)
		}
	}
}

// nextTrack closes the finished track and opens the following one
func (p *Producer) nextTrack() error {
	if p.trackSamples == 0 {
		p.barren++
	} else {
		p.barren = 0
	}

	p.closeDecoder()
	p.catalog.Advance()
	return p.openTrack()
}

// openTrack opens the track at the catalog cursor, skipping tracks that
// fail until a whole catalog's worth of tracks produced nothing
func (p *Producer) openTrack() error {
	count := p.catalog.Count()

	for p.barren < count {
		idx := p.catalog.Current()
		name := p.catalog.NameAt(idx)

		dec, err := p.open(name, p.cache)
		if err == nil {
			p.decoder = dec
			p.name = name
			p.trackSamples = 0
			p.state.Store(int32(StatePlaying))

			log.Printf("Playing: %s", name)
			if p.onTrack != nil {
				p.onTrack(idx, name)
			}
			return nil
		}

		log.Printf("Cannot open %s: %v", name, err)
		p.barren++
		p.catalog.Advance()
	}

	return fmt.Errorf("%w (%d tracks tried)", ErrAllTracksFailed, count)
}

func (p *Producer) closeDecoder() {
	if p.decoder == nil {
		return
	}
	if err := p.decoder.Close(); err != nil {
		log.Printf("Error closing %s: %v", p.name, err)
	}
	p.decoder = nil
}

func (p *Producer) goIdle(err error) error {
	log.Printf("Producer idle, output is silent: %v", err)
	p.state.Store(int32(StateIdle))
	p.markReady()
	return err
}
