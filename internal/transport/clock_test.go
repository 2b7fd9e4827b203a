// ABOUTME: Tests for the period clock
// ABOUTME: Tests frame quotas, sink delivery and cancellation
package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewClockFrames(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		periodMs   int
		frames     int
		period     time.Duration
	}{
		{"defaults", 0, 0, 882, 20 * time.Millisecond},
		{"44.1kHz 10ms", 44100, 10, 441, 10 * time.Millisecond},
		{"48kHz 20ms", 48000, 20, 960, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClock(&rampSource{}, tt.sampleRate, tt.periodMs, nil)
			if c.Frames() != tt.frames {
				t.Errorf("expected %d frames, got %d", tt.frames, c.Frames())
			}
			if c.Period() != tt.period {
				t.Errorf("expected period %v, got %v", tt.period, c.Period())
			}
		})
	}
}

func TestClockTickDeliversPeriod(t *testing.T) {
	source := &rampSource{}
	var got []int16

	c := NewClock(source, 48000, 10, func(pcm []int16) {
		got = append([]int16(nil), pcm...)
	})
	c.Tick()

	if len(got) != 960 {
		t.Fatalf("expected 960 samples, got %d", len(got))
	}
	if got[0] != 1000 || got[959] != 1959 {
		t.Errorf("unexpected samples %d..%d", got[0], got[959])
	}
	if source.frames[0] != 480 {
		t.Errorf("expected quota of 480 frames, got %d", source.frames[0])
	}
	if c.Ticks() != 1 {
		t.Errorf("expected 1 tick, got %d", c.Ticks())
	}
}

func TestClockNullSink(t *testing.T) {
	source := &rampSource{}
	c := NewClock(source, 44100, 20, nil)

	c.Tick()
	c.Tick()

	if source.Calls() != 2 {
		t.Errorf("expected 2 pulls, got %d", source.Calls())
	}
}

func TestClockRunUntilCancelled(t *testing.T) {
	source := &rampSource{}
	c := NewClock(source, 44100, 5, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for source.Calls() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("clock did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("clock did not stop")
	}
}
