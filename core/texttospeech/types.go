package texttospeech

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-playback/core/audio"
)

var (
	// ErrOffline marks a failure caused by the provider being unreachable.
	ErrOffline    = errors.New("speech synthesis provider offline")
	ErrNoProvider = errors.New("no speech synthesis provider configured")
	ErrEmptyAudio = errors.New("speech synthesis returned no audio")
	ErrEmptyText  = errors.New("nothing to synthesize")
)

// Mode tells the gateway how a request will be used.
type Mode string

const (
	// ModeLive requests audio that is played immediately and never cached.
	ModeLive Mode = "live"
	// ModePreGen requests audio ahead of playback. Requests with the same
	// cache key share one result.
	ModePreGen Mode = "pre-gen"
)

// Provider reports where the result came from.
type Provider string

const (
	ProviderRemote Provider = "remote"
	ProviderNone   Provider = "none"
)

type SynthesisOptions struct {
	VoiceID  string
	CacheKey string
	Mode     Mode
}

// SynthesisResult is either remote audio or a reason why there is none. A
// result with ProviderNone tells the caller to fall back to local speech.
type SynthesisResult struct {
	Provider Provider
	Audio    *audio.Resource
	Err      error
}

func (r SynthesisResult) Usable() bool {
	return r.Provider == ProviderRemote && r.Audio.Usable()
}

func none(err error) SynthesisResult {
	return SynthesisResult{Provider: ProviderNone, Err: err}
}

type Request struct {
	Text  string
	Voice string
}

// Synthesizer is a remote speech synthesis provider.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*audio.Resource, error)
}
