// ABOUTME: Consumer callback called by the audio transport every period
// ABOUTME: Drains the current buffer, swaps when empty and pads underruns with silence
package pipeline

import "sync/atomic"

// ConsumerStats counts periods served by the consumer
type ConsumerStats struct {
	Periods       uint64 // Fill calls
	Served        uint64 // periods filled entirely with audio
	Underruns     uint64 // periods padded with silence
	SilentSamples uint64 // samples of padding
	Swaps         uint64
}

// Consumer fills transport buffers from a Channel. Fill must only be called
// from one goroutine at a time.
type Consumer struct {
	channel *Channel

	periods   atomic.Uint64
	served    atomic.Uint64
	underruns atomic.Uint64
	silent    atomic.Uint64
	swaps     atomic.Uint64
	gotAudio  atomic.Bool
}

// NewConsumer creates a consumer draining channel
func NewConsumer(channel *Channel) *Consumer {
	return &Consumer{channel: channel}
}

// Fill writes exactly frames stereo frames into pcm. Missing audio is
// replaced by silence and counted as an underrun. It never blocks and never
// allocates.
func (c *Consumer) Fill(pcm []int16, frames int) {
	out := pcm[:frames*2]

	n := c.channel.Drain(out)
	out = out[n:]

	if len(out) > 0 && c.channel.TrySwap() {
		c.swaps.Add(1)
		n = c.channel.Drain(out)
		out = out[n:]
	}

	c.periods.Add(1)

	if len(out) > 0 {
		clear(out)
		c.underruns.Add(1)
		c.silent.Add(uint64(len(out)))
		return
	}

	c.served.Add(1)
	c.gotAudio.Store(true)
}

// Served reports whether a full period of audio has been served since the
// flag was last taken
func (c *Consumer) Served() bool {
	return c.gotAudio.Load()
}

// TakeServed returns the served flag and clears it
func (c *Consumer) TakeServed() bool {
	return c.gotAudio.Swap(false)
}

// Underruns returns the number of periods padded with silence
func (c *Consumer) Underruns() uint64 {
	return c.underruns.Load()
}

// Stats returns a snapshot of the consumer counters
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Periods:       c.periods.Load(),
		Served:        c.served.Load(),
		Underruns:     c.underruns.Load(),
		SilentSamples: c.silent.Load(),
		Swaps:         c.swaps.Load(),
	}
}
