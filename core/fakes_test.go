package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/scripts"
	"github.com/koscakluka/ema-playback/core/segments"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

func testScript(n int) *scripts.Script {
	script := &scripts.Script{Title: "test"}
	for i := range n {
		script.Segments = append(script.Segments, segments.Segment{
			ID:   fmt.Sprintf("seg-%d", i),
			Text: fmt.Sprintf("segment number %d", i),
		})
	}
	return script
}

type fakeGenerator struct {
	script  *scripts.Script
	err     error
	calls   atomic.Int32
	release chan struct{}
	ctxErr  atomic.Value
}

func (g *fakeGenerator) GenerateScript(ctx context.Context, _ scripts.Request) (*scripts.Script, error) {
	g.calls.Add(1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			g.ctxErr.Store(ctx.Err())
			return nil, ctx.Err()
		}
	}
	return g.script, g.err
}

type gatewayCall struct {
	text string
	opts texttospeech.SynthesisOptions
}

type fakeGateway struct {
	offline bool
	panics  bool

	mu        sync.Mutex
	calls     []gatewayCall
	resources []*audio.Resource
}

func (g *fakeGateway) Synthesize(ctx context.Context, text string, opts texttospeech.SynthesisOptions) texttospeech.SynthesisResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{text: text, opts: opts})
	if g.panics {
		panic("gateway exploded")
	}
	if g.offline {
		return texttospeech.SynthesisResult{Provider: texttospeech.ProviderNone, Err: texttospeech.ErrOffline}
	}

	resource := audio.NewResource([]byte{1, 2, 3, 4}, audio.MimeTypePCM, audio.GetDefaultEncodingInfo())
	g.resources = append(g.resources, resource)
	return texttospeech.SynthesisResult{Provider: texttospeech.ProviderRemote, Audio: resource}
}

func (g *fakeGateway) preGenKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var keys []string
	for _, call := range g.calls {
		if call.opts.Mode == texttospeech.ModePreGen {
			keys = append(keys, call.opts.CacheKey)
		}
	}
	return keys
}

func (g *fakeGateway) allResources() []*audio.Resource {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*audio.Resource(nil), g.resources...)
}

// heldPlayback only ends when the test finishes it. Stop is recorded but
// does not end it.
type heldPlayback struct {
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func newHeldPlayback() *heldPlayback { return &heldPlayback{done: make(chan struct{})} }

func (p *heldPlayback) Done() <-chan struct{} { return p.done }
func (p *heldPlayback) Err() error            { return nil }
func (p *heldPlayback) Stop()                 { p.stopped.Store(true) }
func (p *heldPlayback) finish()               { p.once.Do(func() { close(p.done) }) }

type fakePlayer struct {
	hold bool

	mu        sync.Mutex
	playbacks []audio.Playback
}

func (p *fakePlayer) Play(_ context.Context, _ *audio.Resource) (audio.Playback, error) {
	var playback audio.Playback
	if p.hold {
		playback = newHeldPlayback()
	} else {
		completion := audio.NewCompletion(nil)
		completion.Finish(nil)
		playback = completion
	}

	p.mu.Lock()
	p.playbacks = append(p.playbacks, playback)
	p.mu.Unlock()
	return playback, nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.playbacks)
}

func (p *fakePlayer) playback(i int) audio.Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playbacks[i]
}

type fakeLocal struct {
	spoken atomic.Int32
}

func (l *fakeLocal) Ready(context.Context) error { return nil }

func (l *fakeLocal) Speak(context.Context, string, string) (audio.Playback, error) {
	l.spoken.Add(1)
	completion := audio.NewCompletion(nil)
	completion.Finish(nil)
	return completion, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(s *Session) *recorder {
	r := &recorder{}
	s.On(events.KindAny, func(event events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
	})
	return r
}

func (r *recorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matching []events.Event
	for _, event := range r.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) started() []events.SegmentStarted {
	var started []events.SegmentStarted
	for _, event := range r.ofKind(events.KindSegmentStarted) {
		started = append(started, event.(events.SegmentStarted))
	}
	return started
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// settle gives in-flight commands a chance to run before asserting that
// nothing happened.
func settle() { time.Sleep(50 * time.Millisecond) }

func initialize(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Initialize(ctx, scripts.Request{Topic: "test"}); err != nil {
		t.Fatalf("expected initialization to succeed, got %v", err)
	}
}
