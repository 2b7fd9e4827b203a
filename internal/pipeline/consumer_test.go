// ABOUTME: Tests for the consumer callback
// ABOUTME: Tests exact period size, silence padding and served accounting
package pipeline

import (
	"testing"
)

func TestFillWritesExactQuota(t *testing.T) {
	tests := []struct {
		name      string
		published int
		frames    int
		audio     int
		underrun  bool
	}{
		{"nothing published", 0, 64, 0, true},
		{"partial", 40, 64, 40, true},
		{"exact", 128, 64, 128, false},
		{"more than enough", 200, 64, 128, false},
		{"zero quota", 50, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChannel(256, WithInvariantChecks())
			consumer := NewConsumer(c)

			if tt.published > 0 {
				publishSeq(c, 0, tt.published)
			}

			// Poison the destination past the quota to catch overruns
			out := make([]int16, tt.frames*2+4)
			for i := range out {
				out[i] = -7
			}

			consumer.Fill(out, tt.frames)

			for i := 0; i < tt.audio; i++ {
				if out[i] != seqValue(i) {
					t.Fatalf("sample %d: expected %d, got %d", i, seqValue(i), out[i])
				}
			}
			for i := tt.audio; i < tt.frames*2; i++ {
				if out[i] != 0 {
					t.Fatalf("sample %d: expected silence, got %d", i, out[i])
				}
			}
			for i := tt.frames * 2; i < len(out); i++ {
				if out[i] != -7 {
					t.Fatalf("sample %d beyond quota was written", i)
				}
			}

			stats := consumer.Stats()
			if (stats.Underruns == 1) != tt.underrun {
				t.Errorf("expected underrun=%v, got %d underruns", tt.underrun, stats.Underruns)
			}
			if consumer.Served() == tt.underrun {
				t.Errorf("expected served=%v", !tt.underrun)
			}
			if stats.SilentSamples != uint64(tt.frames*2-tt.audio) {
				t.Errorf("expected %d silent samples, got %d", tt.frames*2-tt.audio, stats.SilentSamples)
			}
		})
	}
}

func TestFillSilenceForever(t *testing.T) {
	consumer := NewConsumer(NewChannel(100))
	out := make([]int16, 200)

	for i := 0; i < 1000; i++ {
		out[0] = 1
		consumer.Fill(out, 100)
		for j, s := range out {
			if s != 0 {
				t.Fatalf("period %d sample %d: expected silence, got %d", i, j, s)
			}
		}
	}

	stats := consumer.Stats()
	if stats.Periods != 1000 || stats.Underruns != 1000 || stats.Served != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTakeServedClearsFlag(t *testing.T) {
	c := NewChannel(100)
	consumer := NewConsumer(c)

	publishSeq(c, 0, 100)
	consumer.Fill(make([]int16, 20), 10)

	if !consumer.TakeServed() {
		t.Fatal("expected served after a full period")
	}
	if consumer.Served() {
		t.Error("expected served flag cleared by TakeServed")
	}

	// An underrun period does not set the flag
	consumer.Fill(make([]int16, 400), 200)
	if consumer.Served() {
		t.Error("expected served to stay clear after an underrun")
	}
	if consumer.Underruns() != 1 {
		t.Errorf("expected 1 underrun, got %d", consumer.Underruns())
	}
}

func TestFillDoesNotAllocate(t *testing.T) {
	c := NewChannel(1000)
	consumer := NewConsumer(c)
	out := make([]int16, 64)

	allocs := testing.AllocsPerRun(100, func() {
		if !c.NextReady() {
			c.Publish(c.Capacity())
		}
		consumer.Fill(out, 32)
	})
	if allocs != 0 {
		t.Errorf("expected no allocations, got %.1f", allocs)
	}
}
