package audio

import (
	"errors"
	"sync"
)

// ErrStopped is reported by a [Playback] that was stopped before it finished.
var ErrStopped = errors.New("playback stopped")

// Playback is a running rendering of audio or speech.
//
// Done is closed exactly once, either when the rendering finished on its own
// or when Stop was called. Err reports why it ended and is only meaningful
// after Done is closed.
type Playback interface {
	Done() <-chan struct{}
	Err() error
	Stop()
}

// Completion is the shared [Playback] implementation used by players and
// speech engines to signal completion.
type Completion struct {
	done   chan struct{}
	once   sync.Once
	err    error
	onStop func()
}

// NewCompletion creates a pending completion. onStop runs once if the
// playback is stopped before it finished.
func NewCompletion(onStop func()) *Completion {
	return &Completion{
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

func (c *Completion) Done() <-chan struct{} { return c.done }

func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Finish marks natural completion. Calls after the first resolution are ignored.
func (c *Completion) Finish(err error) {
	c.resolve(err)
}

func (c *Completion) Stop() {
	if c.resolve(ErrStopped) && c.onStop != nil {
		c.onStop()
	}
}

func (c *Completion) resolve(err error) (resolved bool) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}
