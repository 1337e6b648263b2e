package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/scripts"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

const (
	// DefaultLookAhead is the number of segments past the playhead kept
	// buffered.
	DefaultLookAhead             = 3
	DefaultInitializationTimeout = 60 * time.Second
)

// Option configures a [Session] in [New].
type Option func(*Session)

type ScriptGenerator interface {
	GenerateScript(ctx context.Context, req scripts.Request) (*scripts.Script, error)
}

func WithScriptGenerator(generator ScriptGenerator) Option {
	return func(s *Session) { s.generator = generator }
}

// SynthesisGateway turns text into remote audio. Expected failures are
// reported through a result with [texttospeech.ProviderNone].
type SynthesisGateway interface {
	Synthesize(ctx context.Context, text string, opts texttospeech.SynthesisOptions) texttospeech.SynthesisResult
}

// WithSynthesisGateway sets the remote synthesis path. Without one every
// segment is spoken by the local engine.
func WithSynthesisGateway(gateway SynthesisGateway) Option {
	return func(s *Session) { s.gateway = gateway }
}

// LocalSpeech speaks text directly. Ready is awaited before the first use.
type LocalSpeech interface {
	Ready(ctx context.Context) error
	Speak(ctx context.Context, text, voice string) (audio.Playback, error)
}

// WithLocalSpeech sets the last-resort engine. It defaults to a silent
// [localspeech.TimedEngine].
func WithLocalSpeech(engine LocalSpeech) Option {
	return func(s *Session) {
		if engine != nil {
			s.local = engine
		}
	}
}

// AudioPlayer plays synthesized audio until it ends or is stopped.
type AudioPlayer interface {
	Play(ctx context.Context, resource *audio.Resource) (audio.Playback, error)
}

// WithAudioPlayer sets the output for remote audio. It defaults to
// [audio.DiscardPlayer].
func WithAudioPlayer(player AudioPlayer) Option {
	return func(s *Session) {
		if player != nil {
			s.player = player
		}
	}
}

// WithLookAhead sets how many segments past the playhead are buffered.
func WithLookAhead(segments int) Option {
	return func(s *Session) {
		if segments > 0 {
			s.lookAhead = segments
		}
	}
}

// WithVoice sets the voice used for segments that do not name their own.
func WithVoice(voice string) Option {
	return func(s *Session) { s.voice = voice }
}

// WithSessionID replaces the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithInitializationTimeout bounds script generation and the buffering of
// the first segment.
func WithInitializationTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout > 0 {
			s.initTimeout = timeout
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
