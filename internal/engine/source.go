package engine

import (
	"io"
	"time"

	"github.com/marselab/equalizerd/internal/audio"
)

// clipSource plays a decoded clip back one frame at a time. The final
// partial frame is zero-padded so every emitted frame is full length.
type clipSource struct {
	samples []int16
	pos     int
}

func newClipSource(path string) (*clipSource, error) {
	samples, err := audio.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return &clipSource{samples: samples}, nil
}

// Next returns the next interleaved stereo frame, or io.EOF when the clip
// is exhausted.
func (s *clipSource) Next() ([]int16, error) {
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	frame := make([]int16, audio.FrameSamples)
	n := copy(frame, s.samples[s.pos:])
	s.pos += n
	return frame, nil
}

// Rewind restarts the clip from the beginning for the next play.
func (s *clipSource) Rewind() {
	s.pos = 0
}

// Duration returns the clip length.
func (s *clipSource) Duration() time.Duration {
	frames := (len(s.samples) + audio.FrameSamples - 1) / audio.FrameSamples
	return time.Duration(frames) * audio.FrameDuration
}

// Position returns how far playback has advanced.
func (s *clipSource) Position() time.Duration {
	return time.Duration(s.pos/audio.FrameSamples) * audio.FrameDuration
}
