package fsm

import (
	"fmt"
	"strings"
	"sync"
)

// State describes where a client session is in the turn lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateGenerating   State = "generating"
	StateSpeaking     State = "speaking"
	StateInterrupted  State = "interrupted"
)

// Mode affects what happens when the assistant finishes speaking.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeManual   Mode = "manual"
	ModeRealtime Mode = "realtime"
)

// Machine is a lightweight deterministic session state machine.
type Machine struct {
	mu    sync.RWMutex
	state State
	mode  Mode
}

// New creates a state machine with default idle/auto values.
func New() *Machine {
	return &Machine{
		state: StateIdle,
		mode:  ModeAuto,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Mode returns the current listen mode.
func (m *Machine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode updates policy mode. Unknown values fall back to auto.
func (m *Machine) SetMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case string(ModeManual):
		m.mode = ModeManual
	case string(ModeRealtime):
		m.mode = ModeRealtime
	default:
		m.mode = ModeAuto
	}
}

// OnListenStart moves the session into listening.
func (m *Machine) OnListenStart() {
	m.transition(StateListening)
}

// OnAudioCommit marks captured audio handed off for transcription.
func (m *Machine) OnAudioCommit() {
	m.transition(StateTranscribing)
}

// OnTurnStart marks a user turn entering response generation.
func (m *Machine) OnTurnStart() {
	m.transition(StateGenerating)
}

// OnSpeakStart enters the speaking state.
func (m *Machine) OnSpeakStart() {
	m.transition(StateSpeaking)
}

// OnSpeakStop exits the speaking state according to mode policy. In
// manual mode the client must explicitly start listening again.
func (m *Machine) OnSpeakStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode {
	case ModeManual:
		m.state = StateIdle
	default:
		m.state = StateListening
	}
}

// OnInterrupt marks interruption.
func (m *Machine) OnInterrupt() {
	m.transition(StateInterrupted)
}

// Force sets state unconditionally.
func (m *Machine) Force(state State) error {
	switch state {
	case StateIdle, StateListening, StateTranscribing, StateGenerating, StateSpeaking, StateInterrupted:
		m.transition(state)
		return nil
	default:
		return fmt.Errorf("invalid state: %s", state)
	}
}

func (m *Machine) transition(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
