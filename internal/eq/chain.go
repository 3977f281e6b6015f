package eq

import (
	"fmt"
	"math"
	"sync"
)

// peaking is one RBJ peaking-EQ biquad in transposed direct form II.
// Coefficients are pre-normalized by a0.
type peaking struct {
	freq, q, gainDB    float64
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func newPeaking(freq, q, sampleRate float64) *peaking {
	p := &peaking{freq: freq, q: q}
	p.retune(0, sampleRate)
	return p
}

// retune recomputes coefficients for a new gain. Filter state is kept so a
// live retune does not restart the band's ringing from scratch.
func (p *peaking) retune(gainDB, sampleRate float64) {
	p.gainDB = gainDB
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * p.freq / sampleRate
	alpha := math.Sin(w0) / (2 * p.q)
	cosw0 := math.Cos(w0)

	a0 := 1 + alpha/a
	p.b0 = (1 + alpha*a) / a0
	p.b1 = -2 * cosw0 / a0
	p.b2 = (1 - alpha*a) / a0
	p.a1 = -2 * cosw0 / a0
	p.a2 = (1 - alpha/a) / a0
}

func (p *peaking) process(x float64) float64 {
	y := p.b0*x + p.z1
	p.z1 = p.b1*x - p.a1*y + p.z2
	p.z2 = p.b2*x - p.a2*y
	return y
}

func (p *peaking) reset() {
	p.z1, p.z2 = 0, 0
}

// FilterChain is one channel's ordered cascade of 14 peaking bands. Center
// frequency and Q are fixed at construction; only gains change afterwards.
// Safe for one goroutine processing frames while others set gains.
type FilterChain struct {
	mu         sync.Mutex
	sampleRate float64
	bands      [BandsPerChannel]*peaking
}

// NewFilterChain builds a flat (0 dB everywhere) chain for the sample rate.
func NewFilterChain(sampleRate float64) *FilterChain {
	c := &FilterChain{sampleRate: sampleRate}
	for i, f := range CenterFrequencies {
		c.bands[i] = newPeaking(f, DefaultQ, sampleRate)
	}
	return c
}

// SetGain updates one band's gain. The next processed frame reflects it.
func (c *FilterChain) SetGain(band int, gainDB float64) error {
	if band < 0 || band >= BandsPerChannel {
		return fmt.Errorf("eq: band %d out of range [0,%d)", band, BandsPerChannel)
	}
	c.mu.Lock()
	c.bands[band].retune(ClampGain(gainDB), c.sampleRate)
	c.mu.Unlock()
	return nil
}

// Gain returns one band's current gain in dB.
func (c *FilterChain) Gain(band int) (float64, error) {
	if band < 0 || band >= BandsPerChannel {
		return 0, fmt.Errorf("eq: band %d out of range [0,%d)", band, BandsPerChannel)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bands[band].gainDB, nil
}

// Gains reads all band gains in band order.
func (c *FilterChain) Gains() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, BandsPerChannel)
	for i, b := range c.bands {
		out[i] = b.gainDB
	}
	return out
}

// ApplyGains sets every band from a 14-element slice.
func (c *FilterChain) ApplyGains(gains []float64) error {
	if len(gains) != BandsPerChannel {
		return fmt.Errorf("%w: half is %d", ErrBadVectorLength, len(gains))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, g := range gains {
		c.bands[i].retune(ClampGain(g), c.sampleRate)
	}
	return nil
}

// ProcessFrame runs the cascade over one channel's samples in place.
func (c *FilterChain) ProcessFrame(samples []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range samples {
		for _, b := range c.bands {
			x = b.process(x)
		}
		samples[i] = x
	}
}

// Reset clears all filter state (not gains), e.g. between clips.
func (c *FilterChain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bands {
		b.reset()
	}
}
