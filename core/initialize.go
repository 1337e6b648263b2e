package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/scripts"
	"github.com/koscakluka/ema-playback/core/segments"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

// Initialize acquires the script and buffers the first segment. Concurrent
// calls share one attempt. Once the session is ready further calls return
// nil; after a failure the next call starts a new attempt.
//
// ctx only bounds the wait of this caller. The attempt itself is bounded by
// the initialization timeout and cancelled by Dispose.
func (s *Session) Initialize(ctx context.Context, req scripts.Request) error {
	reply := make(chan error, 1)
	parent := trace.SpanContextFromContext(ctx)
	if !s.post(func() { s.requestInitialization(parent, req, reply) }) {
		return ErrSessionDisposed
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Done():
		select {
		case err := <-reply:
			return err
		default:
			return ErrSessionDisposed
		}
	}
}

func (s *Session) requestInitialization(parent trace.SpanContext, req scripts.Request, reply chan error) {
	switch s.state.Phase {
	case PhaseReady:
		reply <- nil
		return
	case PhaseInitializing:
		s.waiters = append(s.waiters, reply)
		return
	}

	s.waiters = append(s.waiters, reply)
	s.initErr.Store(nil)
	s.state.Phase = PhaseInitializing
	s.state.Error = ""
	s.commit()

	go s.runInitialization(parent, req)
}

// runInitialization runs off the loop and reports back through commands.
func (s *Session) runInitialization(parent trace.SpanContext, req scripts.Request) {
	ctx, cancel := context.WithTimeout(trace.ContextWithSpanContext(s.ctx, parent), s.initTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "initialize session")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id))

	playables, err := s.acquireScript(ctx, req)
	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			err = errors.Join(ErrSessionDisposed, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.post(func() { s.failInitialization(err) })
		return
	}
	span.SetAttributes(attribute.Int("session.segments", len(playables)))

	if !s.post(func() { s.installSegments(playables) }) {
		return
	}

	first := playables[0]
	result := s.synthesize(ctx, first.Text, texttospeech.SynthesisOptions{
		VoiceID:  s.voiceFor(first),
		CacheKey: s.cacheKey(0),
		Mode:     texttospeech.ModePreGen,
	})
	s.deliver(result.Audio, func() { s.completeInitialization(result) })
}

func (s *Session) acquireScript(ctx context.Context, req scripts.Request) (playables []*segments.Playable, err error) {
	if s.generator == nil {
		return nil, ErrNoScriptGenerator
	}

	defer func() {
		if r := recover(); r != nil {
			playables, err = nil, fmt.Errorf("script generator panicked: %v", r)
		}
	}()

	script, err := s.generator.GenerateScript(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}
	if err := scripts.Validate(script); err != nil {
		return nil, err
	}
	return segments.FromScript(script.Segments)
}

func (s *Session) installSegments(playables []*segments.Playable) {
	if s.state.Phase != PhaseInitializing {
		for _, playable := range playables {
			playable.Release()
		}
		return
	}

	s.segments = playables
	s.state.TotalSegments = len(playables)
	s.state.CurrentSegmentIndex = 0
	s.state.CurrentSegmentID = playables[0].ID
	s.commit()
}

func (s *Session) completeInitialization(first texttospeech.SynthesisResult) {
	if s.state.Phase != PhaseInitializing || len(s.segments) == 0 {
		first.Audio.Release()
		return
	}

	s.applyBufferResult(0, first)
	s.state.Phase = PhaseReady
	s.state.IsInitialized = true
	s.commit()
	s.emit(events.NewSegmentBuffered(0, s.segments[0].ID, s.segments[0].Provider))
	s.logger.Info("session ready", "segments", len(s.segments), "first_provider", s.segments[0].Provider)

	s.resolveWaiters(nil)
	s.scheduleBuffering()

	if s.pendingPlay {
		s.pendingPlay = false
		s.play()
	}
}

func (s *Session) failInitialization(err error) {
	if s.state.Phase != PhaseInitializing {
		return
	}

	initErr := &InitializationError{Err: err}
	s.initErr.Store(initErr)
	s.state.Phase = PhaseFailed
	s.state.IsInitialized = false
	s.state.Error = err.Error()
	s.commit()
	s.emit(events.NewError(initErr))
	s.logger.Warn("session initialization failed", "error", err)

	s.resolveWaiters(initErr)

	if s.pendingPlay {
		s.pendingPlay = false
		s.play()
	}
}

func (s *Session) resolveWaiters(err error) {
	for _, waiter := range s.waiters {
		waiter <- err
	}
	s.waiters = nil
}
