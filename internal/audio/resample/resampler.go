// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Used to bring decoded tracks to the playback sample rate
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates.
// It keeps the last frame of each chunk so interpolation is continuous
// across Resample calls.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64 // input frames advanced per output frame
	position   float64 // relative to the first frame of the next input chunk
	lastFrame  []int16
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int16, channels),
	}
}

// Resample converts interleaved input at inputRate into interleaved output at
// outputRate and returns the number of output samples written. All input is
// consumed; output should be sized with OutputSamplesNeeded.
func (r *Resampler) Resample(input []int16, output []int16) int {
	ch := r.channels
	inputFrames := len(input) / ch
	if inputFrames == 0 {
		return 0
	}

	if !r.primed {
		copy(r.lastFrame, input[:ch])
		r.position = -1
		r.primed = true
	}

	outputFrames := len(output) / ch
	outIdx := 0

	for outIdx < outputFrames {
		idx := int(math.Floor(r.position))
		if idx+1 >= inputFrames {
			break
		}

		frac := r.position - float64(idx)

		for c := 0; c < ch; c++ {
			// Frame -1 is the tail of the previous chunk
			var a int16
			if idx < 0 {
				a = r.lastFrame[c]
			} else {
				a = input[idx*ch+c]
			}
			b := input[(idx+1)*ch+c]

			output[outIdx*ch+c] = int16(float64(a)*(1.0-frac) + float64(b)*frac)
		}

		outIdx++
		r.position += r.ratio
	}

	copy(r.lastFrame, input[(inputFrames-1)*ch:inputFrames*ch])
	r.position -= float64(inputFrames)

	return outIdx * ch
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded returns an output size that always holds the result of
// resampling inputSamples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(math.Ceil(float64(inputFrames)/r.ratio)) + 1
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples produce roughly outputSamples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(math.Ceil(float64(outputFrames) * r.ratio))
	if inputFrames < 1 {
		inputFrames = 1
	}
	return inputFrames * r.channels
}
