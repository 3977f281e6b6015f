package engine

import (
	"errors"
	"io"
	"testing"

	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/audio"
	"github.com/marselab/equalizerd/internal/eq"
)

func testEngine(layout Layout) *Engine {
	return New(Config{Layout: layout}, nil, zap.NewNop().Sugar())
}

func TestNewWithoutClipIsLive(t *testing.T) {
	e := testEngine(LayoutStereo)
	st := e.Status()
	if st.Mode != ModeLive {
		t.Errorf("mode = %v, want live", st.Mode)
	}
	if st.State != StateIdle {
		t.Errorf("state = %v, want idle", st.State)
	}
}

func TestDefaultGainsAreFlat(t *testing.T) {
	e := testEngine(LayoutStereo)
	for i, g := range e.Gains() {
		if g != 0 {
			t.Errorf("default gain[%d] = %v, want 0", i, g)
		}
	}
}

func TestSetBandGainStereoIsChannelLocal(t *testing.T) {
	e := testEngine(LayoutStereo)
	before := e.Gains()

	if err := e.SetBandGain(eq.ChannelA, 5, 4.0); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}

	after := e.Gains()
	for i := range after {
		want := before[i]
		if i == 5 {
			want = 4.0
		}
		if after[i] != want {
			t.Errorf("gains[%d] = %v, want %v", i, after[i], want)
		}
	}
}

func TestSetBandGainChannelBMapsToUpperHalf(t *testing.T) {
	e := testEngine(LayoutStereo)
	if err := e.SetBandGain(eq.ChannelB, 2, -3.0); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}
	v := e.Gains()
	if v[eq.BandsPerChannel+2] != -3.0 {
		t.Errorf("channel B band 2 landed at %v, want -3", v[eq.BandsPerChannel+2])
	}
	if v[2] != 0 {
		t.Errorf("channel A band 2 = %v, want untouched 0", v[2])
	}
}

func TestSetBandGainMonoMirrors(t *testing.T) {
	e := testEngine(LayoutMono)
	if err := e.SetBandGain(eq.ChannelA, 7, 6.0); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}
	v := e.Gains()
	if v[7] != 6.0 {
		t.Errorf("channel A band 7 = %v, want 6", v[7])
	}
	if v[eq.BandsPerChannel+7] != 6.0 {
		t.Errorf("channel B band 7 = %v, want mirrored 6", v[eq.BandsPerChannel+7])
	}
}

func TestApplyVectorRoundTrip(t *testing.T) {
	e := testEngine(LayoutStereo)
	v := make(eq.GainVector, eq.VectorLen)
	for i := range v {
		v[i] = float64(i%25) - 12
	}
	if err := e.ApplyVector(v); err != nil {
		t.Fatalf("ApplyVector: %v", err)
	}
	got := e.Gains()
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("gains[%d] = %v, want %v", i, got[i], v[i])
		}
	}
}

func TestApplyVectorMonoMirrorsChannelA(t *testing.T) {
	e := testEngine(LayoutMono)
	v := eq.Flat()
	v[2] = 5
	v[eq.BandsPerChannel+2] = -7 // asymmetric stored halves

	if err := e.ApplyVector(v); err != nil {
		t.Fatalf("ApplyVector: %v", err)
	}
	got := e.Gains()
	if got[2] != 5 {
		t.Errorf("channel A band 2 = %v, want 5", got[2])
	}
	if got[eq.BandsPerChannel+2] != 5 {
		t.Errorf("channel B band 2 = %v, want 5 (mirrored from A)", got[eq.BandsPerChannel+2])
	}
}

func TestApplyVectorRejectsWrongLengthKeepsDefaults(t *testing.T) {
	e := testEngine(LayoutStereo)
	bad := make(eq.GainVector, 27)
	for i := range bad {
		bad[i] = 9
	}
	if err := e.ApplyVector(bad); !errors.Is(err, eq.ErrBadVectorLength) {
		t.Fatalf("ApplyVector(27): err = %v, want ErrBadVectorLength", err)
	}
	for i, g := range e.Gains() {
		if g != 0 {
			t.Errorf("gains[%d] = %v after rejected apply, want default 0", i, g)
		}
	}
}

func TestBandGain(t *testing.T) {
	e := testEngine(LayoutStereo)
	if err := e.SetBandGain(eq.ChannelB, 0, 2.5); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}
	g, err := e.BandGain(eq.ChannelB, 0)
	if err != nil {
		t.Fatalf("BandGain: %v", err)
	}
	if g != 2.5 {
		t.Errorf("BandGain = %v, want 2.5", g)
	}
}

func TestProcessMonoDuplicatesChannels(t *testing.T) {
	e := testEngine(LayoutMono)
	in := make([]int16, audio.FrameSize)
	for i := range in {
		in[i] = int16(i % 1000)
	}
	out := e.process(in)
	if len(out) != audio.FrameSamples {
		t.Fatalf("mono process output length = %d, want %d", len(out), audio.FrameSamples)
	}
	for i := 0; i < audio.FrameSize; i++ {
		if out[2*i] != out[2*i+1] {
			t.Fatalf("sample %d: left %d != right %d", i, out[2*i], out[2*i+1])
		}
	}
}

func TestProcessFlatIsTransparent(t *testing.T) {
	e := testEngine(LayoutStereo)
	in := make([]int16, audio.FrameSamples)
	for i := range in {
		in[i] = int16(i%2000 - 1000)
	}
	out := e.process(in)
	for i := range in {
		diff := int(out[i]) - int(in[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("flat chains altered sample %d: %d -> %d", i, in[i], out[i])
		}
	}
}

// --- clipSource ---

func TestClipSourceFramesAndEOF(t *testing.T) {
	samples := make([]int16, audio.FrameSamples+10) // one full frame plus a partial
	for i := range samples {
		samples[i] = int16(i)
	}
	s := &clipSource{samples: samples}

	first, err := s.Next()
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if len(first) != audio.FrameSamples {
		t.Fatalf("first frame length = %d", len(first))
	}

	second, err := s.Next()
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if second[9] != samples[audio.FrameSamples+9] {
		t.Errorf("partial frame data mismatch")
	}
	if second[10] != 0 {
		t.Errorf("partial frame not zero-padded: second[10] = %d", second[10])
	}

	if _, err := s.Next(); err != io.EOF {
		t.Errorf("after exhaustion err = %v, want io.EOF", err)
	}

	s.Rewind()
	if _, err := s.Next(); err != nil {
		t.Errorf("frame after rewind: %v", err)
	}
}

func TestClipSourceDuration(t *testing.T) {
	s := &clipSource{samples: make([]int16, 3*audio.FrameSamples)}
	if got := s.Duration(); got != 3*audio.FrameDuration {
		t.Errorf("Duration = %v, want %v", got, 3*audio.FrameDuration)
	}
}
