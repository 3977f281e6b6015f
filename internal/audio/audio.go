package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// ClipInfo identifies a recorded or imported clip available for playback.
type ClipInfo struct {
	Path     string
	Duration time.Duration
}

// SilentFrame returns a zeroed interleaved stereo frame.
func SilentFrame() []int16 {
	return make([]int16, FrameSamples)
}

// Deinterleave splits an interleaved stereo frame into per-channel float64
// samples scaled to [-1, 1). left and right must each hold len(frame)/2 values.
func Deinterleave(frame []int16, left, right []float64) {
	for i := 0; i < len(frame)/2; i++ {
		left[i] = float64(frame[2*i]) / 32768
		right[i] = float64(frame[2*i+1]) / 32768
	}
}

// Interleave packs per-channel float64 samples back into an interleaved
// int16 frame, clipping to the int16 range.
func Interleave(left, right []float64, frame []int16) {
	for i := range left {
		frame[2*i] = clip(left[i] * 32768)
		frame[2*i+1] = clip(right[i] * 32768)
	}
}

// MonoToFloat converts a single-channel frame to float64 samples in [-1, 1).
func MonoToFloat(frame []int16, out []float64) {
	for i, s := range frame {
		out[i] = float64(s) / 32768
	}
}

// DuplicateMono packs one processed channel into both slots of an
// interleaved stereo frame.
func DuplicateMono(samples []float64, frame []int16) {
	for i, x := range samples {
		v := clip(x * 32768)
		frame[2*i] = v
		frame[2*i+1] = v
	}
}

func clip(x float64) int16 {
	if x > 32767 {
		return 32767
	}
	if x < -32768 {
		return -32768
	}
	return int16(x)
}
