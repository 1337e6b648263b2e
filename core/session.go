// Package session orchestrates the playback of a generated narration script.
//
// A [Session] acquires a script once, buffers synthesized audio a few
// segments ahead of the playhead and plays segments in order, falling back
// from buffered remote audio to live synthesis to the local speech engine.
//
// Every mutation runs on a single loop goroutine owned by the session. Public
// methods only enqueue work, so they are safe to call from any goroutine,
// including from event listeners.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/localspeech"
	"github.com/koscakluka/ema-playback/core/segments"
)

type Session struct {
	id          string
	generator   ScriptGenerator
	gateway     SynthesisGateway
	local       LocalSpeech
	player      AudioPlayer
	lookAhead   int
	voice       string
	initTimeout time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loop   *commandLoop
	bus    eventBus

	disposed atomic.Bool
	snapshot atomic.Pointer[State]
	infos    atomic.Pointer[[]segments.Info]
	initErr  atomic.Pointer[InitializationError]

	// owned by the loop
	state       State
	segments    []*segments.Playable
	waiters     []chan error
	pendingPlay bool
	runComplete bool
	generation  uint64
	active      *activePlayback
	buffering   *bufferJob
}

func New(opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		local:       localspeech.TimedEngine{},
		player:      audio.DiscardPlayer{},
		lookAhead:   DefaultLookAhead,
		initTimeout: DefaultInitializationTimeout,
		logger:      logger,
		state: State{
			Phase:     PhaseUninitialized,
			PlayState: PlayStateStopped,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.publish()
	s.loop = newCommandLoop()
	return s
}

// ID returns the session id, which also prefixes buffering cache keys.
func (s *Session) ID() string { return s.id }

// CurrentState returns the latest published snapshot.
func (s *Session) CurrentState() State { return *s.snapshot.Load() }

// Segments returns the latest published view of the segments.
func (s *Session) Segments() []segments.Info {
	infos := s.infos.Load()
	if infos == nil {
		return nil
	}
	return append([]segments.Info(nil), (*infos)...)
}

// Err returns the error of the last failed initialization, if the session is
// in the failed phase.
func (s *Session) Err() error {
	if err := s.initErr.Load(); err != nil {
		return err
	}
	return nil
}

// Done is closed once the session is disposed and its resources released.
func (s *Session) Done() <-chan struct{} { return s.loop.done }

// Play starts or resumes playback of the current segment. Called during
// initialization it takes effect once initialization succeeds. After a
// completed run it starts again from the first segment.
func (s *Session) Play() { s.post(s.play) }

// Pause stops the current segment and keeps buffered audio.
func (s *Session) Pause() { s.post(s.pause) }

// Next skips to the following segment.
func (s *Session) Next() { s.post(func() { s.skip(1) }) }

// Prev goes back to the previous segment.
func (s *Session) Prev() { s.post(func() { s.skip(-1) }) }

// Dispose stops playback, cancels all outstanding work and releases audio.
// It is safe to call more than once; every method becomes a no-op after it.
func (s *Session) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}

	s.cancel()
	if !s.loop.post(s.teardown) {
		s.loop.close()
	}
}

// post enqueues cmd on the loop unless the session is disposed.
func (s *Session) post(cmd func()) bool {
	if s.disposed.Load() {
		return false
	}
	return s.loop.post(func() {
		if s.disposed.Load() {
			return
		}
		cmd()
	})
}

// deliver posts a command that carries audio. The audio is released when the
// command can no longer run.
func (s *Session) deliver(resource *audio.Resource, cmd func()) {
	posted := s.loop.post(func() {
		if s.disposed.Load() {
			resource.Release()
			return
		}
		cmd()
	})
	if !posted {
		resource.Release()
	}
}

// commit publishes the working state and announces it.
func (s *Session) commit() {
	s.publish()
	s.emit(newStateChanged(s.state))
}

func (s *Session) publish() {
	s.state.BufferedAhead = s.bufferedAhead()
	snapshot := s.state
	s.snapshot.Store(&snapshot)

	infos := segments.Infos(s.segments)
	s.infos.Store(&infos)
}

func (s *Session) teardown() {
	s.stopActive()
	if s.buffering != nil {
		s.buffering.cancel()
		s.buffering = nil
	}
	for _, segment := range s.segments {
		segment.Release()
	}

	s.state.Phase = PhaseDisposed
	s.state.PlayState = PlayStateStopped
	s.publish()

	for _, waiter := range s.waiters {
		waiter <- ErrSessionDisposed
	}
	s.waiters = nil
	s.pendingPlay = false

	s.logger.Debug("session disposed")
	s.loop.close()
}

func (s *Session) cacheKey(index int) string {
	return fmt.Sprintf("%s:%d", s.id, index)
}

func (s *Session) voiceFor(segment *segments.Playable) string {
	if segment.Voice != "" {
		return segment.Voice
	}
	return s.voice
}

func (s *Session) current() *segments.Playable {
	if s.state.CurrentSegmentIndex < 0 || s.state.CurrentSegmentIndex >= len(s.segments) {
		return nil
	}
	return s.segments[s.state.CurrentSegmentIndex]
}
