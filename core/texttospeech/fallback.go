package texttospeech

import (
	"context"
	"errors"
	"strings"

	"github.com/koscakluka/ema-playback/core/audio"
)

// FallbackSynthesizer tries providers in order and returns the first audio
// produced. The primary provider goes first.
type FallbackSynthesizer struct {
	providers []Synthesizer
}

func NewFallbackSynthesizer(primary Synthesizer, fallbacks ...Synthesizer) *FallbackSynthesizer {
	providers := []Synthesizer{}
	for _, provider := range append([]Synthesizer{primary}, fallbacks...) {
		if provider != nil {
			providers = append(providers, provider)
		}
	}
	return &FallbackSynthesizer{providers: providers}
}

func (f *FallbackSynthesizer) Name() string {
	names := make([]string, len(f.providers))
	for i, provider := range f.providers {
		names[i] = provider.Name()
	}
	return strings.Join(names, ",")
}

func (f *FallbackSynthesizer) Synthesize(ctx context.Context, req Request) (*audio.Resource, error) {
	if len(f.providers) == 0 {
		return nil, ErrNoProvider
	}

	var errs []error
	for _, provider := range f.providers {
		resource, err := provider.Synthesize(ctx, req)
		if err == nil && resource.Usable() {
			return resource, nil
		}
		if err == nil {
			resource.Release()
			err = ErrEmptyAudio
		}

		logger.Debug("speech synthesis provider failed, trying next", "provider", provider.Name(), "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}
