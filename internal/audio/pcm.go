package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// DecodeFile runs FFmpeg to decode an audio file to raw PCM int16 samples.
// Returns interleaved stereo samples at 48kHz. Files with a .pcm or .raw
// extension are assumed to already be in that format and are read directly.
func DecodeFile(path string) ([]int16, error) {
	if strings.HasSuffix(path, ".pcm") || strings.HasSuffix(path, ".raw") {
		cmd := exec.Command("ffmpeg",
			"-f", "s16le",
			"-ar", strconv.Itoa(SampleRate),
			"-ac", strconv.Itoa(Channels),
			"-i", path,
			"-f", "s16le",
			"-loglevel", "error",
			"pipe:1",
		)
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg raw decode %s: %w", path, err)
		}
		return BytesToSamples(out), nil
	}

	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return BytesToSamples(out), nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples converts little-endian bytes to int16 samples, dropping a
// trailing odd byte.
func BytesToSamples(buf []byte) []int16 {
	if len(buf)%2 != 0 {
		buf = buf[:len(buf)-1]
	}
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

// Capture is a live input source: an FFmpeg process reading from an OS
// capture device and emitting raw PCM on stdout.
type Capture struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	channels int
}

// StartCapture opens the capture device with the given FFmpeg input format
// (e.g. "alsa", "avfoundation") and channel count (1 or 2).
func StartCapture(ctx context.Context, format, device string, channels int) (*Capture, error) {
	if channels != 1 && channels != Channels {
		return nil, fmt.Errorf("capture: unsupported channel count %d", channels)
	}
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", format,
		"-i", device,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "error",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture start: %w", err)
	}
	return &Capture{cmd: cmd, stdout: stdout, channels: channels}, nil
}

// Channels returns the capture channel count detected at session start.
func (c *Capture) Channels() int {
	return c.channels
}

// ReadFrame blocks until one 20ms frame has been read. The returned slice
// holds FrameSize samples per capture channel.
func (c *Capture) ReadFrame() ([]int16, error) {
	buf := make([]byte, FrameSize*c.channels*2)
	if _, err := io.ReadFull(c.stdout, buf); err != nil {
		return nil, fmt.Errorf("capture read: %w", err)
	}
	return BytesToSamples(buf), nil
}

// Close stops the capture process.
func (c *Capture) Close() error {
	c.stdout.Close()
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
