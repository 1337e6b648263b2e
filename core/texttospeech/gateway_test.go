package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-playback/core/audio"
)

type fakeSynthesizer struct {
	name  string
	calls atomic.Int32

	mu      sync.Mutex
	err     error
	panics  bool
	empty   bool
	release chan struct{}
}

func (f *fakeSynthesizer) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req Request) (*audio.Resource, error) {
	f.calls.Add(1)

	f.mu.Lock()
	err, panics, empty, release := f.err, f.panics, f.empty, f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panics {
		panic("provider exploded")
	}
	if err != nil {
		return nil, err
	}
	if empty {
		return audio.NewResource(nil, audio.MimeTypePCM, audio.GetDefaultEncodingInfo()), nil
	}
	return audio.NewResource([]byte(req.Text), audio.MimeTypePCM, audio.GetDefaultEncodingInfo()), nil
}

func (f *fakeSynthesizer) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestSynthesizeReturnsRemoteAudio(t *testing.T) {
	gateway := NewRemoteGateway(&fakeSynthesizer{})

	result := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if result.Provider != ProviderRemote || !result.Usable() {
		t.Fatalf("expected usable remote result, got %+v", result)
	}
	if string(result.Audio.Data()) != "hello" {
		t.Fatalf("expected synthesized text as audio, got %q", result.Audio.Data())
	}
}

func TestSynthesizeWithoutProvider(t *testing.T) {
	result := NewRemoteGateway(nil).Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if result.Provider != ProviderNone || !errors.Is(result.Err, ErrNoProvider) {
		t.Fatalf("expected none with ErrNoProvider, got %+v", result)
	}

	var gateway *RemoteGateway
	result = gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if result.Provider != ProviderNone {
		t.Fatalf("expected nil gateway to answer none, got %+v", result)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synthesizer := &fakeSynthesizer{}
	result := NewRemoteGateway(synthesizer).Synthesize(context.Background(), "   ", SynthesisOptions{Mode: ModeLive})
	if !errors.Is(result.Err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %+v", result)
	}
	if synthesizer.calls.Load() != 0 {
		t.Fatalf("expected provider not to be called")
	}
}

func TestSynthesizeRecoversProviderPanic(t *testing.T) {
	gateway := NewRemoteGateway(&fakeSynthesizer{panics: true})

	for _, mode := range []Mode{ModeLive, ModePreGen} {
		result := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: mode, CacheKey: "s:1"})
		if result.Provider != ProviderNone || result.Err == nil {
			t.Fatalf("expected panic to become a none result in %s mode, got %+v", mode, result)
		}
	}
}

func TestSynthesizeTreatsEmptyAudioAsFailure(t *testing.T) {
	result := NewRemoteGateway(&fakeSynthesizer{empty: true}).Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if result.Provider != ProviderNone || !errors.Is(result.Err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %+v", result)
	}
}

func TestOfflineFailureStartsBackoff(t *testing.T) {
	synthesizer := &fakeSynthesizer{err: &net.DNSError{Err: "no such host", Name: "api.example.com"}}
	now := time.Unix(1000, 0)
	gateway := NewRemoteGateway(synthesizer, WithOfflineBackoff(time.Minute))
	gateway.now = func() time.Time { return now }

	first := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if first.Provider != ProviderNone {
		t.Fatalf("expected none, got %+v", first)
	}
	if !gateway.Offline() {
		t.Fatalf("expected gateway to be offline")
	}

	synthesizer.setErr(nil)
	second := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if !errors.Is(second.Err, ErrOffline) {
		t.Fatalf("expected ErrOffline during backoff, got %+v", second)
	}
	if synthesizer.calls.Load() != 1 {
		t.Fatalf("expected provider to be skipped during backoff, got %d calls", synthesizer.calls.Load())
	}

	now = now.Add(2 * time.Minute)
	third := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if !third.Usable() {
		t.Fatalf("expected provider to be retried after backoff, got %+v", third)
	}
}

func TestRejectedRequestDoesNotStartBackoff(t *testing.T) {
	gateway := NewRemoteGateway(&fakeSynthesizer{err: errors.New("400 bad voice")})

	result := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if result.Provider != ProviderNone {
		t.Fatalf("expected none, got %+v", result)
	}
	if gateway.Offline() {
		t.Fatalf("expected a rejected request not to count as offline")
	}
}

func TestCustomOfflinePredicate(t *testing.T) {
	quota := errors.New("quota exceeded")
	gateway := NewRemoteGateway(&fakeSynthesizer{err: quota}, WithOfflinePredicate(func(err error) bool {
		return errors.Is(err, quota)
	}))

	gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if !gateway.Offline() {
		t.Fatalf("expected custom predicate to put the gateway offline")
	}
}

func TestPreGenResultsAreCachedByKey(t *testing.T) {
	synthesizer := &fakeSynthesizer{}
	gateway := NewRemoteGateway(synthesizer)
	opts := SynthesisOptions{Mode: ModePreGen, CacheKey: "session:1"}

	first := gateway.Synthesize(context.Background(), "hello", opts)
	second := gateway.Synthesize(context.Background(), "hello", opts)
	if first.Audio != second.Audio {
		t.Fatalf("expected cached resource to be reused")
	}
	if synthesizer.calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", synthesizer.calls.Load())
	}

	first.Audio.Release()
	third := gateway.Synthesize(context.Background(), "hello", opts)
	if !third.Usable() || third.Audio == first.Audio {
		t.Fatalf("expected released cache entry to be replaced, got %+v", third)
	}
	if synthesizer.calls.Load() != 2 {
		t.Fatalf("expected a second provider call, got %d", synthesizer.calls.Load())
	}
}

func TestLiveRequestsAreNotCached(t *testing.T) {
	synthesizer := &fakeSynthesizer{}
	gateway := NewRemoteGateway(synthesizer)
	opts := SynthesisOptions{Mode: ModeLive, CacheKey: "session:1"}

	gateway.Synthesize(context.Background(), "hello", opts)
	gateway.Synthesize(context.Background(), "hello", opts)
	if synthesizer.calls.Load() != 2 {
		t.Fatalf("expected two provider calls, got %d", synthesizer.calls.Load())
	}
}

func TestConcurrentPreGenRequestsShareOneCall(t *testing.T) {
	synthesizer := &fakeSynthesizer{release: make(chan struct{})}
	gateway := NewRemoteGateway(synthesizer)
	opts := SynthesisOptions{Mode: ModePreGen, CacheKey: "session:2"}

	results := make(chan SynthesisResult, 2)
	for range 2 {
		go func() { results <- gateway.Synthesize(context.Background(), "hello", opts) }()
	}

	deadline := time.After(time.Second)
	for synthesizer.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for provider call")
		case <-time.After(time.Millisecond):
		}
	}
	// give the second caller time to join the flight
	time.Sleep(20 * time.Millisecond)
	close(synthesizer.release)

	for range 2 {
		select {
		case result := <-results:
			if !result.Usable() {
				t.Fatalf("expected usable result, got %+v", result)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for result")
		}
	}
	if synthesizer.calls.Load() != 1 {
		t.Fatalf("expected a single provider call, got %d", synthesizer.calls.Load())
	}
}

func TestRequestTimeoutCountsAsOffline(t *testing.T) {
	synthesizer := &fakeSynthesizer{release: make(chan struct{})}
	gateway := NewRemoteGateway(synthesizer, WithRequestTimeout(10*time.Millisecond))

	result := gateway.Synthesize(context.Background(), "hello", SynthesisOptions{Mode: ModeLive})
	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %+v", result)
	}
	if !gateway.Offline() {
		t.Fatalf("expected timeout to put gateway offline")
	}
}

func TestCallerCancellationIsNotOffline(t *testing.T) {
	synthesizer := &fakeSynthesizer{release: make(chan struct{})}
	gateway := NewRemoteGateway(synthesizer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := gateway.Synthesize(ctx, "hello", SynthesisOptions{Mode: ModePreGen, CacheKey: "s:0"})
	if result.Provider != ProviderNone {
		t.Fatalf("expected none after cancellation, got %+v", result)
	}
	if gateway.Offline() {
		t.Fatalf("expected cancellation not to count as offline")
	}
}

type dialingSynthesizer struct{}

func (dialingSynthesizer) Name() string { return "dialing" }

func (dialingSynthesizer) Synthesize(ctx context.Context, _ Request) (*audio.Resource, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("dialing: %w", &net.OpError{Op: "dial", Net: "tcp", Err: ctx.Err()})
}

func TestCancelledDialIsNotOffline(t *testing.T) {
	gateway := NewRemoteGateway(dialingSynthesizer{}, WithOfflinePredicate(func(err error) bool {
		var opErr *net.OpError
		return errors.As(err, &opErr)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := gateway.Synthesize(ctx, "hello", SynthesisOptions{Mode: ModeLive})
	if result.Provider != ProviderNone {
		t.Fatalf("expected none after cancellation, got %+v", result)
	}
	if gateway.Offline() {
		t.Fatalf("expected cancelled dial not to put gateway offline, got error %v", result.Err)
	}
}

func TestCallerDeadlineIsNotOffline(t *testing.T) {
	gateway := NewRemoteGateway(dialingSynthesizer{}, WithRequestTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := gateway.Synthesize(ctx, "hello", SynthesisOptions{Mode: ModePreGen, CacheKey: "s:1"})
	if result.Provider != ProviderNone {
		t.Fatalf("expected none after caller deadline, got %+v", result)
	}
	if gateway.Offline() {
		t.Fatalf("expected caller deadline not to put gateway offline, got error %v", result.Err)
	}
}
