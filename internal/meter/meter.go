// Package meter implements the decibel noise meter fed by the engine's
// processed frames.
package meter

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"

	"github.com/marselab/equalizerd/internal/audio"
)

// FloorDB is the level reported for digital silence.
const FloorDB = -96.0

// Reading is one meter snapshot in dBFS.
type Reading struct {
	Level  float64 `json:"level_db"`  // RMS of the most recent frame
	Peak   float64 `json:"peak_db"`   // highest frame level seen since Reset
	Mean   float64 `json:"mean_db"`   // mean over the rolling window
	StdDev float64 `json:"stddev_db"` // spread over the rolling window
	Window int     `json:"window"`    // frames currently in the window
}

// Meter converts processed PCM frames into dBFS levels with rolling
// statistics. Safe for one feeder and many readers.
type Meter struct {
	mu        sync.Mutex
	window    []float64 // per-frame RMS levels in dB, ring buffer
	next      int
	filled    int
	peak      float64
	level     float64
	lastFrame []int16
}

// New creates a meter with a rolling window of windowFrames frames
// (50 frames = one second at the engine's 20ms frame rate).
func New(windowFrames int) *Meter {
	if windowFrames < 1 {
		windowFrames = 1
	}
	return &Meter{
		window: make([]float64, windowFrames),
		peak:   FloorDB,
		level:  FloorDB,
	}
}

// Feed ingests one interleaved frame. Implements engine.FrameSink.
func (m *Meter) Feed(frame []int16) {
	db := frameLevelDB(frame)

	m.mu.Lock()
	m.level = db
	if db > m.peak {
		m.peak = db
	}
	m.window[m.next] = db
	m.next = (m.next + 1) % len(m.window)
	if m.filled < len(m.window) {
		m.filled++
	}
	if cap(m.lastFrame) < len(frame) {
		m.lastFrame = make([]int16, len(frame))
	}
	m.lastFrame = m.lastFrame[:len(frame)]
	copy(m.lastFrame, frame)
	m.mu.Unlock()
}

// Reading returns the current levels and window statistics.
func (m *Meter) Reading() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := Reading{
		Level:  m.level,
		Peak:   m.peak,
		Mean:   FloorDB,
		StdDev: 0,
		Window: m.filled,
	}
	if m.filled > 0 {
		w := m.window[:m.filled]
		r.Mean = stat.Mean(w, nil)
		if m.filled > 1 {
			r.StdDev = stat.StdDev(w, nil)
		}
	}
	return r
}

// Reset clears the peak hold and the rolling window.
func (m *Meter) Reset() {
	m.mu.Lock()
	m.peak = FloorDB
	m.level = FloorDB
	m.next = 0
	m.filled = 0
	m.mu.Unlock()
}

// Spectrum returns the magnitude spectrum of the most recent frame, grouped
// into bins of ascending frequency, each in dBFS. Returns nil before the
// first frame arrives.
func (m *Meter) Spectrum(bins int) []float64 {
	if bins < 1 {
		return nil
	}

	m.mu.Lock()
	frame := make([]int16, len(m.lastFrame))
	copy(frame, m.lastFrame)
	m.mu.Unlock()

	if len(frame) == 0 {
		return nil
	}

	// Mix interleaved stereo down to one signal for the display.
	n := len(frame) / audio.Channels
	signal := make([]float64, n)
	for i := 0; i < n; i++ {
		l := float64(frame[2*i]) / 32768
		r := float64(frame[2*i+1]) / 32768
		signal[i] = (l + r) / 2
	}

	spectrum := fft.FFTReal(signal)
	half := len(spectrum) / 2
	if bins > half {
		bins = half
	}

	out := make([]float64, bins)
	perBin := half / bins
	for b := 0; b < bins; b++ {
		var sum float64
		for i := b * perBin; i < (b+1)*perBin; i++ {
			re := real(spectrum[i])
			im := imag(spectrum[i])
			sum += math.Sqrt(re*re+im*im) / float64(n)
		}
		out[b] = toDB(sum / float64(perBin))
	}
	return out
}

// frameLevelDB computes the RMS of an interleaved frame in dBFS.
func frameLevelDB(frame []int16) float64 {
	if len(frame) == 0 {
		return FloorDB
	}
	var sum float64
	for _, s := range frame {
		x := float64(s) / 32768
		sum += x * x
	}
	return toDB(math.Sqrt(sum / float64(len(frame))))
}

func toDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return FloorDB
	}
	db := 20 * math.Log10(amplitude)
	if db < FloorDB {
		return FloorDB
	}
	return db
}
