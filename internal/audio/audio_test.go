package audio

import (
	"testing"
	"time"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- Smoothstep ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < previous %v", x, val, prev)
		}
		prev = val
	}
}

// --- ApplyRamp ---

func TestApplyRampFadeOutEndsSilent(t *testing.T) {
	frame := []int16{10000, 10000, 10000, 10000, 10000}
	ApplyRamp(frame, 1, 0)
	if frame[0] != 10000 {
		t.Errorf("fade-out start sample = %d, want untouched 10000", frame[0])
	}
	if frame[len(frame)-1] != 0 {
		t.Errorf("fade-out final sample = %d, want 0", frame[len(frame)-1])
	}
}

func TestApplyRampFadeInStartsSilent(t *testing.T) {
	frame := []int16{10000, 10000, 10000, 10000, 10000}
	ApplyRamp(frame, 0, 1)
	if frame[0] != 0 {
		t.Errorf("fade-in first sample = %d, want 0", frame[0])
	}
	if frame[len(frame)-1] != 10000 {
		t.Errorf("fade-in final sample = %d, want 10000", frame[len(frame)-1])
	}
}

func TestApplyRampUnityIsNoop(t *testing.T) {
	frame := []int16{1, -1, 32767, -32768}
	want := []int16{1, -1, 32767, -32768}
	ApplyRamp(frame, 1, 1)
	for i := range frame {
		if frame[i] != want[i] {
			t.Errorf("unity ramp changed sample %d: %d -> %d", i, want[i], frame[i])
		}
	}
}

func TestApplyRampEmptyAndSingle(t *testing.T) {
	ApplyRamp(nil, 0, 1) // must not panic
	one := []int16{100}
	ApplyRamp(one, 0, 1)
	if one[0] != 100 {
		t.Errorf("single-sample fade-in = %d, want 100", one[0])
	}
}

// --- SamplesToBytes / round-trip ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> little-endian bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []int16{0, 1, -1, 32767, -32768, 12345, -6789}
	buf := SamplesToBytes(original)
	recovered := BytesToSamples(buf)
	for i, v := range original {
		if recovered[i] != v {
			t.Errorf("Round-trip sample[%d]: got %d, want %d", i, recovered[i], v)
		}
	}
}

func TestBytesToSamplesOddByte(t *testing.T) {
	buf := []byte{0x01, 0x00, 0xff}
	samples := BytesToSamples(buf)
	if len(samples) != 1 {
		t.Fatalf("odd buffer: got %d samples, want 1", len(samples))
	}
	if samples[0] != 1 {
		t.Errorf("samples[0] = %d, want 1", samples[0])
	}
}

// --- Interleave / Deinterleave ---

func TestDeinterleaveInterleaveRoundTrip(t *testing.T) {
	frame := []int16{100, -100, 200, -200, 32767, -32768}
	left := make([]float64, 3)
	right := make([]float64, 3)
	Deinterleave(frame, left, right)

	out := make([]int16, len(frame))
	Interleave(left, right, out)
	for i := range frame {
		if out[i] != frame[i] {
			t.Errorf("Round-trip sample[%d]: got %d, want %d", i, out[i], frame[i])
		}
	}
}

func TestDeinterleaveSplitsChannels(t *testing.T) {
	frame := []int16{16384, -16384, 8192, -8192}
	left := make([]float64, 2)
	right := make([]float64, 2)
	Deinterleave(frame, left, right)
	if left[0] != 0.5 || left[1] != 0.25 {
		t.Errorf("left = %v, want [0.5 0.25]", left)
	}
	if right[0] != -0.5 || right[1] != -0.25 {
		t.Errorf("right = %v, want [-0.5 -0.25]", right)
	}
}

func TestInterleaveClips(t *testing.T) {
	left := []float64{2.0}
	right := []float64{-2.0}
	out := make([]int16, 2)
	Interleave(left, right, out)
	if out[0] != 32767 {
		t.Errorf("hot left sample = %d, want 32767", out[0])
	}
	if out[1] != -32768 {
		t.Errorf("hot right sample = %d, want -32768", out[1])
	}
}

func TestDuplicateMono(t *testing.T) {
	samples := []float64{0.5, -0.25}
	out := make([]int16, 4)
	DuplicateMono(samples, out)
	if out[0] != out[1] || out[2] != out[3] {
		t.Errorf("mono duplicate mismatch: %v", out)
	}
	if out[0] != 16384 {
		t.Errorf("out[0] = %d, want 16384", out[0])
	}
}

func TestSilentFrame(t *testing.T) {
	f := SilentFrame()
	if len(f) != FrameSamples {
		t.Fatalf("SilentFrame length = %d, want %d", len(f), FrameSamples)
	}
	for i, s := range f {
		if s != 0 {
			t.Fatalf("SilentFrame[%d] = %d, want 0", i, s)
		}
	}
}
