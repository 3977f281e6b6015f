package engine

import "sync"

// TransportMode is fixed once at engine load: live capture when no recorded
// clip exists, playback when one does. It is not switchable within a session.
type TransportMode int

const (
	ModeLive TransportMode = iota
	ModePlayback
)

func (m TransportMode) String() string {
	if m == ModePlayback {
		return "playback"
	}
	return "live"
}

// MarshalText renders the mode as its name in JSON status payloads.
func (m TransportMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// TransportState is the single toggle control's state. Live mode moves
// between Idle and Recording, playback mode between Paused and Playing.
type TransportState int

const (
	StateIdle TransportState = iota
	StateRecording
	StatePaused
	StatePlaying
)

func (s TransportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	}
	return "unknown"
}

// MarshalText renders the state as its name in JSON status payloads.
func (s TransportState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transport is the record/playback state machine. All transitions are safe
// from any goroutine; the change callback runs outside the lock.
type Transport struct {
	mu       sync.Mutex
	mode     TransportMode
	state    TransportState
	onChange func(TransportState)
}

// NewTransport creates a transport in its mode's resting state.
func NewTransport(mode TransportMode) *Transport {
	state := StateIdle
	if mode == ModePlayback {
		state = StatePaused
	}
	return &Transport{mode: mode, state: state}
}

// SetOnChange registers a callback invoked after every state change.
func (t *Transport) SetOnChange(fn func(TransportState)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Mode returns the mode chosen at load.
func (t *Transport) Mode() TransportMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// State returns the current transport state.
func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether audio is flowing (recording or playing).
func (t *Transport) Active() bool {
	s := t.State()
	return s == StateRecording || s == StatePlaying
}

// Toggle flips the single transport control and returns the new state.
func (t *Transport) Toggle() TransportState {
	t.mu.Lock()
	switch t.state {
	case StateIdle:
		t.state = StateRecording
	case StateRecording:
		t.state = StateIdle
	case StatePaused:
		t.state = StatePlaying
	case StatePlaying:
		t.state = StatePaused
	}
	state, fn := t.state, t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(state)
	}
	return state
}

// Complete handles playback reaching the end of the clip: Playing becomes
// Paused. A no-op in any other state, and safe from the playback goroutine.
func (t *Transport) Complete() {
	t.mu.Lock()
	if t.state != StatePlaying {
		t.mu.Unlock()
		return
	}
	t.state = StatePaused
	state, fn := t.state, t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// Interrupt forces a recording transport back to Idle, e.g. when the capture
// device fails mid-session. A no-op unless currently recording.
func (t *Transport) Interrupt() {
	t.mu.Lock()
	if t.state != StateRecording {
		t.mu.Unlock()
		return
	}
	t.state = StateIdle
	state, fn := t.state, t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}
