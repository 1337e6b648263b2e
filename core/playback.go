package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

// activePlayback is one attempt at rendering the current segment. Its
// generation tags every completion that comes back to the loop; anything
// reported for another generation is stale and dropped.
type activePlayback struct {
	generation uint64
	index      int
	ctx        context.Context
	cancel     context.CancelFunc
	playback   audio.Playback
	// live is audio synthesized for this attempt only.
	live *audio.Resource
}

func (s *Session) play() {
	switch s.state.Phase {
	case PhaseInitializing:
		s.pendingPlay = true
		return
	case PhaseFailed:
		s.emit(events.NewError(s.Err()))
		return
	case PhaseUninitialized:
		s.emit(events.NewError(ErrNotInitialized))
		return
	case PhaseReady:
	default:
		return
	}

	if s.runComplete {
		s.runComplete = false
		s.moveTo(0)
		s.scheduleBuffering()
	}

	s.state.PlayState = PlayStatePlaying
	s.commit()
	s.emit(events.NewPlay(s.state.CurrentSegmentIndex, s.state.CurrentSegmentID))
	s.startPlayback()
}

func (s *Session) pause() {
	if s.state.PlayState != PlayStatePlaying {
		return
	}

	s.stopActive()
	s.state.PlayState = PlayStatePaused
	s.commit()
	s.emit(events.NewPause(s.state.CurrentSegmentIndex))
}

func (s *Session) skip(delta int) {
	if s.state.Phase != PhaseReady || s.state.PlayState == PlayStateStopped {
		return
	}

	target := min(max(s.state.CurrentSegmentIndex+delta, 0), len(s.segments)-1)
	if target == s.state.CurrentSegmentIndex {
		return
	}

	wasPlaying := s.state.PlayState == PlayStatePlaying
	s.stopActive()
	s.moveTo(target)
	s.commit()
	s.scheduleBuffering()
	if wasPlaying {
		s.startPlayback()
	}
}

// moveTo moves the playhead without publishing.
func (s *Session) moveTo(index int) {
	s.state.CurrentSegmentIndex = index
	s.state.CurrentSegmentID = s.segments[index].ID
	s.cancelBufferingOutsideWindow()
}

// startPlayback runs the fallback cascade for the current segment: buffered
// remote audio, then live synthesis, then the local engine.
func (s *Session) startPlayback() {
	s.stopActive()

	segment := s.current()
	if segment == nil {
		return
	}

	s.generation++
	ctx, cancel := context.WithCancel(s.ctx)
	active := &activePlayback{
		generation: s.generation,
		index:      s.state.CurrentSegmentIndex,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.active = active

	if segment.HasAudio() {
		s.playResource(active, segment.Audio(), events.MechanismBuffered)
		return
	}

	text := segment.Text
	opts := texttospeech.SynthesisOptions{VoiceID: s.voiceFor(segment), Mode: texttospeech.ModeLive}
	go func() {
		result := s.synthesize(ctx, text, opts)
		s.deliver(result.Audio, func() { s.onLiveSynthesis(active, result) })
	}()
}

func (s *Session) isCurrent(active *activePlayback) bool {
	return s.active != nil && s.active.generation == active.generation
}

func (s *Session) onLiveSynthesis(active *activePlayback, result texttospeech.SynthesisResult) {
	if !s.isCurrent(active) {
		result.Audio.Release()
		return
	}

	if !result.Usable() {
		result.Audio.Release()
		s.logger.Debug("live synthesis unavailable, speaking locally", "index", active.index, "error", result.Err)
		s.speakLocally(active)
		return
	}

	active.live = result.Audio
	s.playResource(active, result.Audio, events.MechanismLive)
}

func (s *Session) playResource(active *activePlayback, resource *audio.Resource, mechanism events.Mechanism) {
	go func() {
		playback, err := safePlayback(func() (audio.Playback, error) {
			return s.player.Play(active.ctx, resource)
		})
		s.handOff(playback, func() { s.onPlaybackStarted(active, mechanism, playback, err) })
	}()
}

func (s *Session) onPlaybackStarted(active *activePlayback, mechanism events.Mechanism, playback audio.Playback, err error) {
	if !s.isCurrent(active) {
		if playback != nil {
			playback.Stop()
		}
		return
	}

	if err != nil {
		s.logger.Warn("audio playback failed, speaking locally", "index", active.index, "mechanism", mechanism, "error", err)
		s.speakLocally(active)
		return
	}

	s.started(active, mechanism, playback)
}

func (s *Session) speakLocally(active *activePlayback) {
	segment := s.segments[active.index]
	if !segment.Buffered {
		// the playhead reached it before buffering did
		segment.CompleteLocal()
		s.publish()
	}
	text, voice := segment.Text, s.voiceFor(segment)

	go func() {
		if err := s.local.Ready(active.ctx); err != nil {
			if active.ctx.Err() != nil {
				return
			}
			s.logger.Warn("local speech engine not ready, trying anyway", "error", err)
		}

		playback, err := safePlayback(func() (audio.Playback, error) {
			return s.local.Speak(active.ctx, text, voice)
		})
		s.handOff(playback, func() { s.onLocalSpeechStarted(active, playback, err) })
	}()
}

func (s *Session) onLocalSpeechStarted(active *activePlayback, playback audio.Playback, err error) {
	if !s.isCurrent(active) {
		if playback != nil {
			playback.Stop()
		}
		return
	}

	if err != nil {
		// the session keeps moving even when nothing could be rendered
		s.logger.Warn("local speech failed", "index", active.index, "error", err)
		s.onPlaybackEnded(active, err)
		return
	}

	s.started(active, events.MechanismLocal, playback)
}

func (s *Session) started(active *activePlayback, mechanism events.Mechanism, playback audio.Playback) {
	active.playback = playback
	playbackCounter.Add(s.ctx, 1, metric.WithAttributes(attribute.String("mechanism", string(mechanism))))
	s.emit(events.NewSegmentStarted(active.index, s.segments[active.index].ID, mechanism))

	go func() {
		select {
		case <-playback.Done():
			s.post(func() { s.onPlaybackEnded(active, playback.Err()) })
		case <-active.ctx.Done():
		}
	}()
}

// onPlaybackEnded advances past a finished segment. Errors count as
// completion so a broken player or engine cannot stall the session.
func (s *Session) onPlaybackEnded(active *activePlayback, err error) {
	if !s.isCurrent(active) {
		return
	}
	if err != nil && !errors.Is(err, audio.ErrStopped) {
		s.logger.Warn("segment playback ended with error", "index", active.index, "error", err)
	}

	s.stopActive()
	s.advance()
}

func (s *Session) advance() {
	next := s.state.CurrentSegmentIndex + 1
	if next >= len(s.segments) {
		s.state.PlayState = PlayStateStopped
		s.runComplete = true
		s.commit()
		s.emit(events.NewEnd(len(s.segments)))
		return
	}

	s.moveTo(next)
	s.commit()
	s.scheduleBuffering()
	if s.state.PlayState == PlayStatePlaying {
		s.startPlayback()
	}
}

// stopActive cancels the current attempt before anything else may start.
func (s *Session) stopActive() {
	active := s.active
	if active == nil {
		return
	}
	s.active = nil

	active.cancel()
	if active.playback != nil {
		active.playback.Stop()
	}
	active.live.Release()
	active.live = nil
}

// handOff posts a command that owns a started playback. The playback is
// stopped when the command can no longer run.
func (s *Session) handOff(playback audio.Playback, cmd func()) {
	stop := func() {
		if playback != nil {
			playback.Stop()
		}
	}
	posted := s.loop.post(func() {
		if s.disposed.Load() {
			stop()
			return
		}
		cmd()
	})
	if !posted {
		stop()
	}
}

func safePlayback(start func() (audio.Playback, error)) (playback audio.Playback, err error) {
	defer func() {
		if r := recover(); r != nil {
			playback, err = nil, fmt.Errorf("playback panicked: %v", r)
		}
	}()

	playback, err = start()
	if err == nil && playback == nil {
		err = errors.New("playback not started")
	}
	return playback, err
}
