package session

import (
	"errors"

	"github.com/koscakluka/ema-playback/core/scripts"
)

var (
	ErrSessionDisposed   = errors.New("session disposed")
	ErrNotInitialized    = errors.New("session not initialized")
	ErrNoScriptGenerator = errors.New("no script generator configured")

	ErrNoSegments       = scripts.ErrNoSegments
	ErrEmptySegmentText = scripts.ErrEmptySegmentText
)

// InitializationError reports why a session could not be initialized. It is
// fatal to that attempt; calling Initialize again retries.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return "session initialization failed: " + e.Err.Error()
}

func (e *InitializationError) Unwrap() error { return e.Err }
