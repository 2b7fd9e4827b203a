// ABOUTME: Shared fakes for transport tests
// ABOUTME: A source that records calls and fills a recognizable ramp
package transport

import "sync"

// rampSource fills every period with calls*1000 + i
type rampSource struct {
	mu     sync.Mutex
	calls  int
	frames []int
}

func (s *rampSource) Fill(pcm []int16, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.frames = append(s.frames, frames)
	for i := 0; i < frames*2; i++ {
		pcm[i] = int16(s.calls*1000 + i)
	}
}

func (s *rampSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
