// ABOUTME: Ticker driven period clock
// ABOUTME: Pulls one period from a source every tick and hands it to a sink
package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cardplayer/internal/audio"
)

// Sink receives one period of audio. pcm is reused on the next tick.
type Sink func(pcm []int16)

// Clock pulls a fixed quota from a Source once per period. With a nil sink
// it is a null output that still paces the consumer in real time.
type Clock struct {
	source Source
	sink   Sink
	frames int
	period time.Duration
	pcm    []int16
	ticks  atomic.Uint64
}

// NewClock creates a clock for sampleRate Hz and periodMs periods
func NewClock(source Source, sampleRate, periodMs int, sink Sink) *Clock {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if periodMs <= 0 {
		periodMs = DefaultPeriodMs
	}

	frames := audio.FramesPerPeriod(sampleRate, periodMs)

	return &Clock{
		source: source,
		sink:   sink,
		frames: frames,
		period: time.Duration(periodMs) * time.Millisecond,
		pcm:    make([]int16, frames*audio.Channels),
	}
}

// Frames returns the frame quota per period
func (c *Clock) Frames() int {
	return c.frames
}

// Period returns the tick interval
func (c *Clock) Period() time.Duration {
	return c.period
}

// Ticks returns how many periods have been pulled
func (c *Clock) Ticks() uint64 {
	return c.ticks.Load()
}

// Tick pulls one period and passes it to the sink
func (c *Clock) Tick() {
	c.source.Fill(c.pcm, c.frames)
	if c.sink != nil {
		c.sink(c.pcm)
	}
	c.ticks.Add(1)
}

// Run ticks until ctx is done
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
