package station

import (
	"sync"
	"time"
)

// State is a station's connection lifecycle phase. Charging/transaction
// states are out of scope for this emulator; the lifecycle here only tracks
// how far along the CSMS handshake a station is.
type State string

const (
	StateUnknown      State = "unknown"
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateRegistered   State = "registered" // set by StartStation once started; no BootNotification reply is awaited
	StateFaulted      State = "faulted"
	StateUnavailable  State = "unavailable"
)

// maxTransitionHistory bounds the per-station transition log.
const maxTransitionHistory = 50

// StateTransition records one lifecycle change with the reason that drove it.
type StateTransition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// StateMachine tracks a station's lifecycle phase and keeps a bounded log of
// recent transitions for diagnostics.
type StateMachine struct {
	mu      sync.RWMutex
	current State
	history []StateTransition
}

// NewStateMachine starts in StateUnknown.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateUnknown}
}

// GetState returns the current lifecycle phase.
func (sm *StateMachine) GetState() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// SetState moves to a new phase, recording the transition. Setting the
// current phase again is a no-op.
func (sm *StateMachine) SetState(to State, reason string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == to {
		return
	}

	sm.history = append(sm.history, StateTransition{
		From:      sm.current,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	if len(sm.history) > maxTransitionHistory {
		sm.history = sm.history[len(sm.history)-maxTransitionHistory:]
	}
	sm.current = to
}

// History returns a copy of the recorded transitions, oldest first.
func (sm *StateMachine) History() []StateTransition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]StateTransition, len(sm.history))
	copy(out, sm.history)
	return out
}

// IsConnected reports whether the station currently holds a transport
// connection to the CSMS.
func (sm *StateMachine) IsConnected() bool {
	switch sm.GetState() {
	case StateConnected, StateRegistered:
		return true
	default:
		return false
	}
}
