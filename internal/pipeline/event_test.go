// ABOUTME: Tests for the wake-up event
// ABOUTME: Tests latching, non-blocking signal and cancellation
package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestEventLatchesSignal(t *testing.T) {
	e := NewEvent()

	// Signalled before anyone waits: the wake-up must not be lost
	e.Signal()
	e.Signal()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := e.Wait(ctx); err != nil {
		t.Fatalf("expected latched signal, got %v", err)
	}
}

func TestEventWaitCancelled(t *testing.T) {
	e := NewEvent()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := e.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestEventWakesWaiter(t *testing.T) {
	e := NewEvent()
	done := make(chan error, 1)

	go func() {
		done <- e.Wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	e.Signal()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}
