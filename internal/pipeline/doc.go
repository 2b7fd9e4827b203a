// ABOUTME: Double-buffered audio pipeline between a decoding producer and a real-time consumer
// ABOUTME: Package overview for Channel, Event, Producer and Consumer
// Package pipeline moves decoded PCM from a free-running producer goroutine to
// a consumer that the audio transport calls on its own schedule.
//
// The two sides share exactly one Channel: two fixed PCM buffers, a valid
// sample count per buffer and an index naming the current buffer. The
// producer only writes the next buffer while its count is zero and publishes
// it with a single atomic store. The consumer only reads the current buffer,
// and it alone flips the index once current is drained and next is
// published. No locks are taken and nothing is allocated after construction.
//
// The producer is the only side that blocks. It waits on an Event that the
// consumer signals after every swap.
package pipeline
