// Package engine owns the live audio graph: the capture/playback source,
// both 14-band filter chains, and the transport state machine. It is the
// only component that touches the audio process, and it emits every
// processed frame for streaming and metering.
package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/audio"
	"github.com/marselab/equalizerd/internal/eq"
)

// Layout is the input channel layout, resolved once at session start.
type Layout int

const (
	LayoutStereo Layout = iota
	LayoutMono
)

func (l Layout) String() string {
	if l == LayoutMono {
		return "mono"
	}
	return "stereo"
}

// MarshalText renders the layout as its name in JSON status payloads.
func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// FrameSink receives every processed frame (e.g. the noise meter).
type FrameSink interface {
	Feed(frame []int16)
}

// Config holds the engine's construction-time parameters.
type Config struct {
	// ClipPath is where recordings land. An existing file here at load time
	// selects playback mode for the whole session.
	ClipPath string
	// CaptureFormat is the FFmpeg input format ("alsa", "avfoundation", ...).
	CaptureFormat string
	// CaptureDevice is the FFmpeg input device name.
	CaptureDevice string
	// Layout is the capture channel layout.
	Layout Layout
}

// Engine is the audio graph controller. One per process; it exclusively
// owns the capture/playback source and both filter chains.
type Engine struct {
	cfg  Config
	log  *zap.SugaredLogger
	sink FrameSink

	chainA    *eq.FilterChain
	chainB    *eq.FilterChain
	transport *Transport
	clip      *clipSource // non-nil in playback mode
	frameCh   chan []int16

	mu       sync.RWMutex
	position time.Duration
	duration time.Duration
}

// New builds the graph. Mode selection happens here, once: if a previously
// recorded clip exists and decodes, the session is playback; otherwise live.
func New(cfg Config, sink FrameSink, log *zap.SugaredLogger) *Engine {
	e := &Engine{
		cfg:     cfg,
		log:     log,
		sink:    sink,
		chainA:  eq.NewFilterChain(audio.SampleRate),
		chainB:  eq.NewFilterChain(audio.SampleRate),
		frameCh: make(chan []int16, 100),
	}

	mode := ModeLive
	if cfg.ClipPath != "" {
		if _, err := os.Stat(cfg.ClipPath); err == nil {
			clip, err := newClipSource(cfg.ClipPath)
			if err != nil {
				log.Warnw("clip decode failed, falling back to live input",
					"path", cfg.ClipPath, "error", err)
			} else {
				e.clip = clip
				e.duration = clip.Duration()
				mode = ModePlayback
			}
		}
	}
	e.transport = NewTransport(mode)
	return e
}

// Frames returns the channel of processed 20ms output frames.
func (e *Engine) Frames() <-chan []int16 {
	return e.frameCh
}

// Transport returns the engine's transport state machine.
func (e *Engine) Transport() *Transport {
	return e.transport
}

// Layout returns the input layout resolved at load.
func (e *Engine) Layout() Layout {
	return e.cfg.Layout
}

// SetBandGain updates one band of one channel's chain synchronously: the
// next processed frame reflects it. With a mono layout the other chain
// mirrors the change so both halves of the persisted vector stay equal.
func (e *Engine) SetBandGain(ch eq.Channel, band int, gainDB float64) error {
	if e.cfg.Layout == LayoutMono {
		if err := e.chainA.SetGain(band, gainDB); err != nil {
			return err
		}
		return e.chainB.SetGain(band, gainDB)
	}
	return e.chain(ch).SetGain(band, gainDB)
}

// BandGain reads one band's gain.
func (e *Engine) BandGain(ch eq.Channel, band int) (float64, error) {
	return e.chain(ch).Gain(band)
}

// Gains merges both chains' current gains into the flat 28-element vector.
func (e *Engine) Gains() eq.GainVector {
	v, _ := eq.Merge(e.chainA.Gains(), e.chainB.Gains()) // halves always 14
	return v
}

// ApplyVector splits a stored vector onto both chains. Wrong-length vectors
// are rejected and the chains keep their current gains. With a mono layout
// channel A's half drives both chains, keeping them mirrored even when the
// stored halves disagree.
func (e *Engine) ApplyVector(v eq.GainVector) error {
	a, b, err := v.Split()
	if err != nil {
		return err
	}
	if e.cfg.Layout == LayoutMono {
		b = a
	}
	if err := e.chainA.ApplyGains(a); err != nil {
		return err
	}
	return e.chainB.ApplyGains(b)
}

// Status is a snapshot for the status endpoint.
type Status struct {
	Mode     TransportMode  `json:"mode"`
	State    TransportState `json:"state"`
	Layout   Layout         `json:"layout"`
	Position float64        `json:"position_sec"`
	Duration float64        `json:"duration_sec"`
}

// Status reports the transport and playback position.
func (e *Engine) Status() Status {
	e.mu.RLock()
	pos, dur := e.position, e.duration
	e.mu.RUnlock()
	return Status{
		Mode:     e.transport.Mode(),
		State:    e.transport.State(),
		Layout:   e.cfg.Layout,
		Position: pos.Seconds(),
		Duration: dur.Seconds(),
	}
}

func (e *Engine) chain(ch eq.Channel) *eq.FilterChain {
	if ch == eq.ChannelB {
		return e.chainB
	}
	return e.chainA
}

// Run drives the graph at real-time rate. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.frameCh)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	var capture *audio.Capture
	var capCancel context.CancelFunc
	var rec *os.File
	stopCapture := func() {
		if capture != nil {
			capture.Close()
			capCancel()
			capture = nil
		}
		if rec != nil {
			rec.Close()
			rec = nil
		}
	}
	defer stopCapture()

	wasActive := false
	var lastFrame []int16

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := e.transport.State()
		var frame []int16

		switch state {
		case StateRecording:
			if capture == nil {
				capture, capCancel, rec = e.startCapture(ctx)
				if capture == nil {
					frame = audio.SilentFrame()
					state = StateIdle
					break
				}
			}
			captured, err := capture.ReadFrame()
			if err != nil {
				e.log.Errorw("capture read failed", "error", err)
				e.transport.Interrupt()
				stopCapture()
				frame = audio.SilentFrame()
				state = StateIdle
				break
			}
			if rec != nil {
				// The clip stores the raw input; EQ is re-applied on playback.
				if _, err := rec.Write(audio.SamplesToBytes(rawStereo(captured))); err != nil {
					e.log.Warnw("clip write failed, stopping clip persistence", "error", err)
					rec.Close()
					rec = nil
				}
			}
			frame = e.process(captured)

		case StatePlaying:
			f, err := e.clip.Next()
			if err != nil { // io.EOF: clip exhausted
				e.transport.Complete()
				e.clip.Rewind()
				e.log.Infow("playback complete")
				frame = audio.SilentFrame()
				state = StatePaused
			} else {
				frame = e.process(f)
			}

		default: // StateIdle, StatePaused
			if capture != nil {
				stopCapture()
				e.log.Infow("recording stopped", "clip", e.cfg.ClipPath)
			}
			frame = audio.SilentFrame()
		}

		e.updatePosition()

		active := state == StateRecording || state == StatePlaying
		switch {
		case active && !wasActive:
			audio.ApplyRamp(frame, 0, 1)
		case !active && wasActive && lastFrame != nil:
			// Emit one faded-out copy of the last live frame to avoid a click.
			faded := make([]int16, len(lastFrame))
			copy(faded, lastFrame)
			audio.ApplyRamp(faded, 1, 0)
			frame = faded
		}
		if active {
			lastFrame = frame
		}
		wasActive = active

		if e.sink != nil {
			e.sink.Feed(frame)
		}

		select {
		case e.frameCh <- frame:
		default:
			// downstream backlog, drop rather than stall the graph
		}
	}
}

func (e *Engine) startCapture(ctx context.Context) (*audio.Capture, context.CancelFunc, *os.File) {
	capCtx, cancel := context.WithCancel(ctx)
	channels := audio.Channels
	if e.cfg.Layout == LayoutMono {
		channels = 1
	}
	capture, err := audio.StartCapture(capCtx, e.cfg.CaptureFormat, e.cfg.CaptureDevice, channels)
	if err != nil {
		cancel()
		e.log.Errorw("capture start failed",
			"format", e.cfg.CaptureFormat, "device", e.cfg.CaptureDevice, "error", err)
		e.transport.Interrupt()
		return nil, nil, nil
	}

	var rec *os.File
	if e.cfg.ClipPath != "" {
		f, err := os.Create(e.cfg.ClipPath)
		if err != nil {
			e.log.Warnw("clip file create failed, recording will not persist",
				"path", e.cfg.ClipPath, "error", err)
		} else {
			rec = f
		}
	}
	e.log.Infow("recording started", "layout", e.cfg.Layout)
	return capture, cancel, rec
}

// process runs one captured or decoded frame through the filter chains.
// Mono input drives chain A and the output mirrors it onto both channels.
func (e *Engine) process(in []int16) []int16 {
	out := make([]int16, audio.FrameSamples)
	if len(in) == audio.FrameSize { // single-channel capture
		buf := make([]float64, len(in))
		audio.MonoToFloat(in, buf)
		e.chainA.ProcessFrame(buf)
		audio.DuplicateMono(buf, out)
		return out
	}
	left := make([]float64, len(in)/2)
	right := make([]float64, len(in)/2)
	audio.Deinterleave(in, left, right)
	e.chainA.ProcessFrame(left)
	e.chainB.ProcessFrame(right)
	audio.Interleave(left, right, out)
	return out
}

// rawStereo upmixes a mono captured frame for the clip file; stereo frames
// pass through.
func rawStereo(in []int16) []int16 {
	if len(in) != audio.FrameSize {
		return in
	}
	out := make([]int16, audio.FrameSamples)
	for i, s := range in {
		out[2*i] = s
		out[2*i+1] = s
	}
	return out
}

func (e *Engine) updatePosition() {
	if e.clip == nil {
		return
	}
	e.mu.Lock()
	e.position = e.clip.Position()
	e.mu.Unlock()
}
