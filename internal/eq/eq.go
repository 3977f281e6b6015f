// Package eq holds the equalizer gain model: the flat persisted gain vector
// and the per-channel filter chains it maps onto.
package eq

import (
	"errors"
	"fmt"
)

const (
	// BandsPerChannel is the number of gain bands in one channel's chain.
	BandsPerChannel = 14
	// NumChannels is the number of independent signal paths (A/left, B/right).
	NumChannels = 2
	// VectorLen is the length of the flat persisted gain vector.
	VectorLen = BandsPerChannel * NumChannels

	// MinGainDB and MaxGainDB bound every band gain.
	MinGainDB = -12.0
	MaxGainDB = 12.0
)

// Channel selects one of the two signal paths.
type Channel int

const (
	ChannelA Channel = iota // left
	ChannelB                // right
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// CenterFrequencies lists the fixed band centers in Hz, low to high. The
// first 7 form the low stack, the last 7 the high stack of each channel's
// slider layout. Frequencies and Q are construction-time constants; gain is
// the only field the application mutates.
var CenterFrequencies = [BandsPerChannel]float64{
	32, 45, 63, 90, 125, 180, 250,
	500, 1000, 2000, 4000, 8000, 12000, 16000,
}

// DefaultQ is the fixed bandwidth parameter shared by every band.
const DefaultQ = 1.0

// ErrBadVectorLength reports a stored gain vector whose length is not
// exactly VectorLen. Such vectors are rejected and defaults retained.
var ErrBadVectorLength = errors.New("eq: gain vector length must be 28")

// GainVector is the flat persisted list of all band gains: channel A's 14
// values followed by channel B's 14. A nil vector means "never saved",
// which is distinct from an all-zero (flat) vector.
type GainVector []float64

// Flat returns an all-zero vector, the documented default for every band.
func Flat() GainVector {
	return make(GainVector, VectorLen)
}

// Valid reports whether the vector has exactly VectorLen elements.
func (v GainVector) Valid() bool {
	return len(v) == VectorLen
}

// Split partitions the vector into the two per-channel halves, preserving
// order: the first 14 values belong to channel A, the last 14 to channel B.
// The returned slices are copies; mutating them does not alias v.
func (v GainVector) Split() (a, b []float64, err error) {
	if !v.Valid() {
		return nil, nil, fmt.Errorf("%w: got %d", ErrBadVectorLength, len(v))
	}
	a = make([]float64, BandsPerChannel)
	b = make([]float64, BandsPerChannel)
	copy(a, v[:BandsPerChannel])
	copy(b, v[BandsPerChannel:])
	return a, b, nil
}

// Merge is the inverse of Split: channel A's 14 values concatenated with
// channel B's 14. Both inputs must have exactly BandsPerChannel elements.
func Merge(a, b []float64) (GainVector, error) {
	if len(a) != BandsPerChannel || len(b) != BandsPerChannel {
		return nil, fmt.Errorf("%w: halves are %d and %d", ErrBadVectorLength, len(a), len(b))
	}
	v := make(GainVector, 0, VectorLen)
	v = append(v, a...)
	v = append(v, b...)
	return v, nil
}

// Clone returns an independent copy, preserving nil-ness.
func (v GainVector) Clone() GainVector {
	if v == nil {
		return nil
	}
	out := make(GainVector, len(v))
	copy(out, v)
	return out
}

// ClampGain bounds a gain to [MinGainDB, MaxGainDB].
func ClampGain(g float64) float64 {
	if g < MinGainDB {
		return MinGainDB
	}
	if g > MaxGainDB {
		return MaxGainDB
	}
	return g
}
