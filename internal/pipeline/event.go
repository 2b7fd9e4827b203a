// ABOUTME: Single-slot wake-up signal between pipeline goroutines
// ABOUTME: Latches one pending signal so a wake-up sent before Wait is never lost
package pipeline

import "context"

// Event is a binary signal. Signal never blocks and latches at most one
// pending wake-up; Wait consumes it. Waiters must re-check their condition
// after waking since a latched signal may be stale.
type Event struct {
	ch chan struct{}
}

// NewEvent creates an unsignalled event
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Signal wakes the waiter, or the next one to call Wait
func (e *Event) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the event is signalled or ctx is done
func (e *Event) Wait(ctx context.Context) error {
	select {
	case <-e.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
