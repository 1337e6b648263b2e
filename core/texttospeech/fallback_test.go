package texttospeech

import (
	"context"
	"errors"
	"testing"
)

func TestFallbackSynthesizerUsesFirstWorkingProvider(t *testing.T) {
	primary := &fakeSynthesizer{name: "primary", err: errors.New("down")}
	secondary := &fakeSynthesizer{name: "secondary"}
	fallback := NewFallbackSynthesizer(primary, secondary)

	resource, err := fallback.Synthesize(context.Background(), Request{Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resource.Usable() {
		t.Fatalf("expected usable audio")
	}
	if primary.calls.Load() != 1 || secondary.calls.Load() != 1 {
		t.Fatalf("expected both providers to be tried once, got %d and %d", primary.calls.Load(), secondary.calls.Load())
	}
	if fallback.Name() != "primary,secondary" {
		t.Fatalf("unexpected name %q", fallback.Name())
	}
}

func TestFallbackSynthesizerJoinsErrors(t *testing.T) {
	fallback := NewFallbackSynthesizer(&fakeSynthesizer{err: ErrOffline}, &fakeSynthesizer{empty: true})

	_, err := fallback.Synthesize(context.Background(), Request{Text: "hi"})
	if !errors.Is(err, ErrOffline) || !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected joined offline and empty audio errors, got %v", err)
	}
}

func TestFallbackSynthesizerWithoutProviders(t *testing.T) {
	_, err := NewFallbackSynthesizer(nil).Synthesize(context.Background(), Request{Text: "hi"})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}
