// ABOUTME: Double-buffered PCM channel shared by producer and consumer
// ABOUTME: Implements publish, drain and the consumer-side buffer swap
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
)

// DefaultCapacity is the default per-buffer size in samples
const DefaultCapacity = 5000

// Channel holds two PCM buffers labelled current and next. The labels move,
// the memory does not.
//
// Ownership:
//   - NextBuffer, NextReady, Publish, WaitSlotFree: producer goroutine only
//   - Drain, TrySwap, Available: consumer only
type Channel struct {
	buffers [2][]int16
	valid   [2]atomic.Uint32
	current atomic.Uint32

	// Consumer owned
	readIdx int

	slotFree *Event
	checked  bool
}

// ChannelOption configures a Channel
type ChannelOption func(*Channel)

// WithInvariantChecks makes Publish panic when the single-writer contract is
// broken. Meant for tests; the real-time path does not check.
func WithInvariantChecks() ChannelOption {
	return func(c *Channel) {
		c.checked = true
	}
}

// NewChannel allocates both buffers with capacity samples each
func NewChannel(capacity int, opts ...ChannelOption) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Channel{
		slotFree: NewEvent(),
	}
	c.buffers[0] = make([]int16, capacity)
	c.buffers[1] = make([]int16, capacity)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capacity returns the size of each buffer in samples
func (c *Channel) Capacity() int {
	return len(c.buffers[0])
}

func (c *Channel) next() uint32 {
	return 1 - c.current.Load()
}

// NextBuffer returns the whole next buffer for the producer to fill. Only
// valid while NextReady is false.
func (c *Channel) NextBuffer() []int16 {
	return c.buffers[c.next()]
}

// NextReady reports whether next holds published samples the consumer has
// not taken yet
func (c *Channel) NextReady() bool {
	return c.valid[c.next()].Load() != 0
}

// Publish commits n samples written into NextBuffer. The store of the count
// is the commit point; the consumer never sees a partial buffer.
func (c *Channel) Publish(n int) {
	next := c.next()
	if c.checked {
		if v := c.valid[next].Load(); v != 0 {
			panic(fmt.Sprintf("pipeline: publish into next buffer still holding %d samples", v))
		}
		if n <= 0 || n > len(c.buffers[next]) {
			panic(fmt.Sprintf("pipeline: publish of %d samples into %d sample buffer", n, len(c.buffers[next])))
		}
	}
	c.valid[next].Store(uint32(n))
}

// Drain copies up to len(dst) unread samples from current into dst and
// returns how many were copied. Never blocks.
func (c *Channel) Drain(dst []int16) int {
	cur := c.current.Load()
	n := copy(dst, c.buffers[cur][c.readIdx:c.valid[cur].Load()])
	c.readIdx += n
	return n
}

// Available returns the unread samples left in current
func (c *Channel) Available() int {
	cur := c.current.Load()
	return int(c.valid[cur].Load()) - c.readIdx
}

// TrySwap makes next the current buffer if current is fully drained and next
// has been published. The old current is emptied and handed back to the
// producer, which is woken. Returns whether a swap happened.
func (c *Channel) TrySwap() bool {
	cur := c.current.Load()
	if c.readIdx != int(c.valid[cur].Load()) {
		return false
	}
	next := 1 - cur
	if c.valid[next].Load() == 0 {
		return false
	}

	c.valid[cur].Store(0)
	c.current.Store(next)
	c.readIdx = 0

	c.NotifySlotFree()
	return true
}

// NotifySlotFree wakes the producer if it is waiting for buffer space
func (c *Channel) NotifySlotFree() {
	c.slotFree.Signal()
}

// WaitSlotFree blocks the producer until the consumer frees a buffer or ctx
// is done. Wake-ups may be spurious.
func (c *Channel) WaitSlotFree(ctx context.Context) error {
	return c.slotFree.Wait(ctx)
}
