// ABOUTME: Main card player application orchestration
// ABOUTME: Mounts storage, builds the catalog, runs the producer and starts the output transport
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
	"github.com/Resonate-Protocol/cardplayer/internal/catalog"
	"github.com/Resonate-Protocol/cardplayer/internal/decode"
	"github.com/Resonate-Protocol/cardplayer/internal/pipeline"
	"github.com/Resonate-Protocol/cardplayer/internal/storage"
	"github.com/Resonate-Protocol/cardplayer/internal/transport"
	"github.com/Resonate-Protocol/cardplayer/internal/ui"
)

// Output modes. Exactly one transport drives the consumer.
const (
	OutputDevice = "device"
	OutputStream = "stream"
	OutputNull   = "null"
	OutputNone   = "none" // nothing pulls; the embedder calls Consumer().Fill
)

// Config holds player configuration
type Config struct {
	MusicDir string
	FS       fs.FS // used instead of MusicDir when set

	Extensions    []string
	BufferSamples int
	CacheBytes    int
	MaxTracks     int
	MaxNameLen    int
	SampleRate    int
	PeriodMs      int

	Output     string
	Port       int
	Name       string
	Codec      string
	EnableMDNS bool

	// ReadyTimeout bounds how long Start waits for the first decoded buffer
	ReadyTimeout time.Duration
	// StatusInterval is the health report period
	StatusInterval time.Duration
	// OnStatus receives a snapshot every StatusInterval
	OnStatus func(ui.Status)
}

func (c Config) withDefaults() Config {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".mp3"}
	}
	if c.BufferSamples <= 0 {
		c.BufferSamples = pipeline.DefaultCapacity
	}
	if c.CacheBytes <= 0 {
		c.CacheBytes = decode.DefaultCacheBytes
	}
	if c.MaxTracks <= 0 {
		c.MaxTracks = catalog.DefaultMaxTracks
	}
	if c.MaxNameLen <= 0 {
		c.MaxNameLen = catalog.DefaultMaxNameLen
	}
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.PeriodMs <= 0 {
		c.PeriodMs = transport.DefaultPeriodMs
	}
	if c.Output == "" {
		c.Output = OutputDevice
	}
	if c.Name == "" {
		c.Name = "Card Player"
	}
	if c.Codec == "" {
		c.Codec = transport.CodecPCM
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 2 * time.Second
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 5 * time.Second
	}
	return c
}

func (c Config) validate() error {
	switch c.Output {
	case OutputDevice, OutputStream, OutputNull, OutputNone:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	switch c.Codec {
	case transport.CodecPCM, transport.CodecOpus:
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	// One stereo frame is the smallest unit a decoder can deliver
	if c.BufferSamples < audio.Channels {
		return fmt.Errorf("buffer of %d samples cannot hold a stereo frame", c.BufferSamples)
	}
	return nil
}

// Player represents the card player application
type Player struct {
	config Config

	volume   *storage.Volume
	catalog  *catalog.Catalog
	channel  *pipeline.Channel
	producer *pipeline.Producer
	consumer *pipeline.Consumer

	device *transport.Device
	clock  *transport.Clock
	stream *transport.Stream

	trackIndex atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a new player
func New(config Config) *Player {
	p := &Player{config: config.withDefaults()}
	p.trackIndex.Store(-1)
	return p
}

// Start brings the player up: storage, catalog, producer, then output. A
// returned error is fatal; nothing has been played.
func (p *Player) Start(ctx context.Context) error {
	if err := p.config.validate(); err != nil {
		return err
	}

	volume, err := p.mount()
	if err != nil {
		return err
	}
	p.volume = volume

	cat, err := catalog.Build(volume, catalog.Config{
		Patterns:   storage.Patterns(p.config.Extensions),
		MaxTracks:  p.config.MaxTracks,
		MaxNameLen: p.config.MaxNameLen,
	})
	if err != nil {
		return err
	}
	p.catalog = cat

	if cat.Count() == 0 {
		log.Printf("Warning: %v in %s, output will be silent", catalog.ErrNoTracks, volume.Root())
	} else {
		log.Printf("Catalog: %d tracks", cat.Count())
	}

	p.channel = pipeline.NewChannel(p.config.BufferSamples)
	p.consumer = pipeline.NewConsumer(p.channel)

	// The stream must exist before the producer reports its first track
	if p.config.Output == OutputStream {
		p.stream = transport.NewStream(p.consumer, transport.StreamConfig{
			Port:       p.config.Port,
			Name:       p.config.Name,
			Codec:      p.config.Codec,
			SampleRate: p.config.SampleRate,
			PeriodMs:   p.config.PeriodMs,
			EnableMDNS: p.config.EnableMDNS,
			TrackCount: cat.Count(),
		})
	}

	p.producer = pipeline.NewProducer(pipeline.ProducerConfig{
		Channel:    p.channel,
		Catalog:    cat,
		Open:       p.openTrack,
		CacheBytes: p.config.CacheBytes,
		OnTrack:    p.onTrack,
	})

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.producer.Run(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Producer stopped: %v", err)
		}
	}()

	select {
	case <-p.producer.Ready():
	case <-time.After(p.config.ReadyTimeout):
		log.Printf("No audio after %s, starting output anyway", p.config.ReadyTimeout)
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}

	if err := p.startOutput(); err != nil {
		p.Stop()
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportHealth()
	}()

	log.Printf("Player started: output=%s rate=%dHz period=%dms buffer=%d samples",
		p.config.Output, p.config.SampleRate, p.config.PeriodMs, p.config.BufferSamples)

	return nil
}

func (p *Player) mount() (*storage.Volume, error) {
	if p.config.FS != nil {
		return storage.NewVolume(p.config.FS), nil
	}
	volume, err := storage.Mount(p.config.MusicDir)
	if err != nil {
		return nil, fmt.Errorf("mount failed: %w", err)
	}
	return volume, nil
}

// openTrack opens a catalog entry as a decoder at the playback rate
func (p *Player) openTrack(name string, cache []byte) (decode.Decoder, error) {
	f, err := p.volume.Open(name)
	if err != nil {
		return nil, err
	}

	dec, err := decode.Open(f, name, cache)
	if err != nil {
		return nil, err
	}

	return decode.Resample(dec, p.config.SampleRate), nil
}

// onTrack runs on the producer goroutine
func (p *Player) onTrack(index int, name string) {
	p.trackIndex.Store(int32(index))
	if p.stream != nil {
		p.stream.SetTrack(index, p.catalog.Count(), p.catalog.Title(index))
	}
}

func (p *Player) startOutput() error {
	switch p.config.Output {
	case OutputDevice:
		device, err := transport.OpenDevice(p.consumer, p.config.SampleRate, p.config.PeriodMs)
		if err != nil {
			return fmt.Errorf("audio device failed: %w", err)
		}
		p.device = device

	case OutputStream:
		if err := p.stream.Start(p.ctx); err != nil {
			return fmt.Errorf("stream failed: %w", err)
		}

	case OutputNull:
		p.clock = transport.NewClock(p.consumer, p.config.SampleRate, p.config.PeriodMs, nil)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.clock.Run(p.ctx)
		}()

	case OutputNone:
	}
	return nil
}

// reportHealth logs underruns and stalls once per interval
func (p *Player) reportHealth() {
	ticker := time.NewTicker(p.config.StatusInterval)
	defer ticker.Stop()

	var lastUnderruns uint64
	for {
		select {
		case <-ticker.C:
			status := p.Status()
			playing := p.producer.State() == pipeline.StatePlaying

			if delta := status.Underruns - lastUnderruns; delta > 0 && playing {
				log.Printf("Underruns: %d in the last %s", delta, p.config.StatusInterval)
			}
			lastUnderruns = status.Underruns

			if !p.consumer.TakeServed() && playing && p.config.Output != OutputNone {
				log.Printf("No full period served in the last %s", p.config.StatusInterval)
			}

			if p.config.OnStatus != nil {
				p.config.OnStatus(status)
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// Status returns a snapshot for display
func (p *Player) Status() ui.Status {
	status := ui.Status{TrackIndex: -1, State: pipeline.StateStarting.String()}
	if p.catalog == nil || p.producer == nil {
		return status
	}

	stats := p.consumer.Stats()
	status.TrackCount = p.catalog.Count()
	status.State = p.producer.State().String()
	status.Periods = stats.Periods
	status.Served = stats.Served
	status.Underruns = stats.Underruns
	status.SilentSamples = stats.SilentSamples

	if idx := int(p.trackIndex.Load()); idx >= 0 {
		status.TrackIndex = idx
		status.Title = p.catalog.Title(idx)
	}
	if p.stream != nil {
		status.Clients = p.stream.ClientCount()
	}
	return status
}

// Consumer returns the consumer for OutputNone embedding. Only one goroutine
// may call Fill.
func (p *Player) Consumer() *pipeline.Consumer {
	return p.consumer
}

// Producer returns the producer
func (p *Player) Producer() *pipeline.Producer {
	return p.producer
}

// Catalog returns the track catalog, nil before Start
func (p *Player) Catalog() *catalog.Catalog {
	return p.catalog
}

// Stream returns the stream transport when the output is a stream
func (p *Player) Stream() *transport.Stream {
	return p.stream
}

// Stop stops the player
func (p *Player) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		if p.device != nil {
			if err := p.device.Close(); err != nil {
				log.Printf("Error closing audio device: %v", err)
			}
		}
		if p.stream != nil {
			p.stream.Stop()
		}
		p.wg.Wait()
		log.Printf("Player stopped")
	})
}
