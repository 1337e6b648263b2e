package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

// bufferJob is the single in-flight pre-generation request.
type bufferJob struct {
	index  int
	ctx    context.Context
	cancel context.CancelFunc
}

// window returns the inclusive index range buffered ahead of the playhead.
func (s *Session) window() (first, last int) {
	first = s.state.CurrentSegmentIndex + 1
	last = min(s.state.CurrentSegmentIndex+s.lookAhead, len(s.segments)-1)
	return first, last
}

func (s *Session) bufferedAhead() int {
	first, last := s.window()
	count := 0
	for i := first; i <= last; i++ {
		if s.segments[i].Buffered {
			count++
		}
	}
	return count
}

// scheduleBuffering starts buffering the lowest unbuffered segment in the
// window. Buffering always moves forward from the playhead, one segment at a
// time.
func (s *Session) scheduleBuffering() {
	if s.state.Phase != PhaseReady || s.buffering != nil {
		return
	}

	first, last := s.window()
	for i := first; i <= last; i++ {
		segment := s.segments[i]
		if segment.Buffered || segment.InFlight() {
			continue
		}
		s.startBuffering(i)
		return
	}
}

func (s *Session) startBuffering(index int) {
	segment := s.segments[index]
	ctx, cancel := context.WithCancel(s.ctx)
	job := &bufferJob{index: index, ctx: ctx, cancel: cancel}
	segment.BeginBuffering(cancel)
	s.buffering = job

	text := segment.Text
	opts := texttospeech.SynthesisOptions{
		VoiceID:  s.voiceFor(segment),
		CacheKey: s.cacheKey(index),
		Mode:     texttospeech.ModePreGen,
	}
	go func() {
		result := s.synthesize(ctx, text, opts)
		s.deliver(result.Audio, func() { s.completeBuffering(job, result) })
	}()
}

func (s *Session) completeBuffering(job *bufferJob, result texttospeech.SynthesisResult) {
	if s.buffering == job {
		s.buffering = nil
	}

	segment := s.segments[job.index]
	if job.ctx.Err() != nil || segment.Buffered {
		// Cancelled jobs keep their audio out of the segment. The gateway
		// may hand the same resource out again for this cache key, so it is
		// not released here.
		s.scheduleBuffering()
		return
	}

	s.applyBufferResult(job.index, result)
	s.commit()
	s.emit(events.NewSegmentBuffered(job.index, segment.ID, segment.Provider))
	s.scheduleBuffering()
}

// applyBufferResult records the outcome of pre-generation. A missing or
// failed result degrades the segment to the local engine.
func (s *Session) applyBufferResult(index int, result texttospeech.SynthesisResult) {
	segment := s.segments[index]
	if result.Usable() {
		segment.CompleteRemote(result.Audio)
	} else {
		result.Audio.Release()
		segment.CompleteLocal()
		s.logger.Debug("segment falls back to local speech", "index", index, "error", result.Err)
	}

	bufferCounter.Add(s.ctx, 1, metric.WithAttributes(attribute.String("provider", string(segment.Provider))))
}

// cancelBufferingOutsideWindow drops the in-flight job once its segment is
// no longer ahead of the playhead.
func (s *Session) cancelBufferingOutsideWindow() {
	if s.buffering == nil {
		return
	}

	first, last := s.window()
	if s.buffering.index >= first && s.buffering.index <= last {
		return
	}

	s.segments[s.buffering.index].AbortBuffering()
	s.buffering = nil
}

// synthesize calls the gateway and turns anything unexpected into a result
// without audio.
func (s *Session) synthesize(ctx context.Context, text string, opts texttospeech.SynthesisOptions) (result texttospeech.SynthesisResult) {
	if s.gateway == nil {
		return texttospeech.SynthesisResult{Provider: texttospeech.ProviderNone, Err: texttospeech.ErrNoProvider}
	}

	defer func() {
		if r := recover(); r != nil {
			result = texttospeech.SynthesisResult{
				Provider: texttospeech.ProviderNone,
				Err:      fmt.Errorf("synthesis gateway panicked: %v", r),
			}
		}
	}()
	return s.gateway.Synthesize(ctx, text, opts)
}
