package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// ApplyRamp scales a frame in place by a gain ramp from `from` to `to`
// following the smoothstep curve. Used for click-free transport starts and
// stops: ramping 0->1 fades a frame in, 1->0 fades it out.
func ApplyRamp(frame []int16, from, to float64) {
	n := len(frame)
	if n == 0 {
		return
	}
	den := float64(n - 1)
	if den == 0 {
		den = 1
	}
	for i := range frame {
		t := Smoothstep(float64(i) / den)
		gain := from + (to-from)*t
		scaled := float64(frame[i]) * gain

		// Clip to int16 range
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		frame[i] = int16(scaled)
	}
}
