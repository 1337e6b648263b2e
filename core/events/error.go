package events

// KindError identifies an error surfaced to listeners.
const KindError Kind = "error"

// Error carries an error that did not stop the session, or the stored
// initialization error when playback was requested after a failure.
type Error struct {
	Base
	Err error
}

func NewError(err error) Error {
	return Error{Base: NewBase(KindError), Err: err}
}
