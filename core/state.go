package session

import "github.com/koscakluka/ema-playback/core/events"

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitializing  Phase = "initializing"
	PhaseReady         Phase = "ready"
	PhaseFailed        Phase = "failed"
	// PhaseDisposed is terminal.
	PhaseDisposed Phase = "disposed"
)

type PlayState string

const (
	PlayStateStopped PlayState = "stopped"
	PlayStatePlaying PlayState = "playing"
	PlayStatePaused  PlayState = "paused"
)

// State is a read-only snapshot of a session. A new value is published after
// every mutation; snapshots are never modified after publication.
type State struct {
	Phase               Phase
	PlayState           PlayState
	CurrentSegmentIndex int
	CurrentSegmentID    string
	TotalSegments       int
	// BufferedAhead counts buffered segments inside the look-ahead window
	// past the playhead.
	BufferedAhead int
	Error         string
	IsInitialized bool
}

// KindStateChange identifies a new state snapshot.
const KindStateChange events.Kind = "state-change"

type StateChanged struct {
	events.Base
	State State
}

func newStateChanged(state State) StateChanged {
	return StateChanged{Base: events.NewBase(KindStateChange), State: state}
}
