// ABOUTME: Real-time audio transports that pull PCM from the pipeline consumer
// ABOUTME: Package overview for the local device, null clock and network stream outputs
// Package transport drives a Source at the pace of an audio output. Each
// transport calls Fill with a fixed number of frames per period from a single
// goroutine and never waits on the producer.
//
// Device plays through the local sound card via oto. Clock paces a null sink
// from a ticker. Stream broadcasts each period to websocket listeners as PCM
// or Opus chunks.
package transport

// Source fills pcm with exactly frames interleaved stereo frames. It must not
// block.
type Source interface {
	Fill(pcm []int16, frames int)
}

// Codecs offered by Stream
const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

// DefaultPeriodMs is the default transport period
const DefaultPeriodMs = 20
