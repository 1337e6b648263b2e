package texttospeech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/koscakluka/ema-playback/core/audio"
)

const (
	DefaultRequestTimeout = 20 * time.Second
	DefaultOfflineBackoff = 30 * time.Second
	DefaultCacheSize      = 64
)

// RemoteGateway puts a remote [Synthesizer] behind the synthesis contract
// sessions rely on: it never panics and expected failures come back as a
// [ProviderNone] result.
//
// Pre-generated results are cached by cache key and concurrent requests for
// the same key share one provider call. Resources served for the same key
// are shared, so callers must not release audio they expect to be reused.
type RemoteGateway struct {
	synthesizer    Synthesizer
	isOffline      func(error) bool
	offlineBackoff time.Duration
	timeout        time.Duration
	limiter        *rate.Limiter
	cacheSize      int

	cache  *lru.Cache[string, *audio.Resource]
	flight singleflight.Group
	now    func() time.Time

	mu           sync.Mutex
	offlineUntil time.Time
}

type GatewayOption func(*RemoteGateway)

// WithOfflinePredicate replaces [IsOffline] as the classification of
// failures that put the gateway into offline mode.
func WithOfflinePredicate(isOffline func(error) bool) GatewayOption {
	return func(g *RemoteGateway) {
		if isOffline != nil {
			g.isOffline = isOffline
		}
	}
}

// WithOfflineBackoff sets how long the gateway answers without calling the
// provider after an offline failure. Zero disables offline mode.
func WithOfflineBackoff(backoff time.Duration) GatewayOption {
	return func(g *RemoteGateway) { g.offlineBackoff = max(backoff, 0) }
}

func WithRequestTimeout(timeout time.Duration) GatewayOption {
	return func(g *RemoteGateway) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithRateLimit caps provider calls per second. A non-positive rate leaves
// the gateway unlimited.
func WithRateLimit(perSecond float64, burst int) GatewayOption {
	return func(g *RemoteGateway) {
		if perSecond <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

func WithCacheSize(size int) GatewayOption {
	return func(g *RemoteGateway) {
		if size > 0 {
			g.cacheSize = size
		}
	}
}

func NewRemoteGateway(synthesizer Synthesizer, opts ...GatewayOption) *RemoteGateway {
	g := &RemoteGateway{
		synthesizer:    synthesizer,
		isOffline:      IsOffline,
		offlineBackoff: DefaultOfflineBackoff,
		timeout:        DefaultRequestTimeout,
		limiter:        rate.NewLimiter(rate.Inf, 0),
		cacheSize:      DefaultCacheSize,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	cache, err := lru.New[string, *audio.Resource](g.cacheSize)
	if err != nil {
		// only returned for non-positive sizes, which options reject
		panic(fmt.Sprintf("failed to create synthesis cache: %v", err))
	}
	g.cache = cache
	return g
}

// Synthesize converts text into remote audio. It never panics and never
// returns an error other than through the result.
func (g *RemoteGateway) Synthesize(ctx context.Context, text string, opts SynthesisOptions) (result SynthesisResult) {
	ctx, span := tracer.Start(ctx, "synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.mode", string(opts.Mode)),
		attribute.String("request.cache_key", opts.CacheKey),
	)

	defer func() {
		if r := recover(); r != nil {
			result = none(fmt.Errorf("speech synthesis panicked: %v", r))
		}
		g.record(ctx, opts.Mode, result)
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.SetAttributes(attribute.String("response.provider", string(result.Provider)))
	}()

	switch {
	case strings.TrimSpace(text) == "":
		return none(ErrEmptyText)
	case g == nil || g.synthesizer == nil:
		return none(ErrNoProvider)
	case g.offline():
		return none(ErrOffline)
	}

	req := Request{Text: text, Voice: opts.VoiceID}
	if opts.Mode != ModePreGen || opts.CacheKey == "" {
		resource, err := g.call(ctx, req)
		if err != nil {
			return none(err)
		}
		return SynthesisResult{Provider: ProviderRemote, Audio: resource}
	}

	if cached, ok := g.cache.Get(opts.CacheKey); ok {
		if cached.Usable() {
			span.SetAttributes(attribute.Bool("response.cached", true))
			return SynthesisResult{Provider: ProviderRemote, Audio: cached}
		}
		g.cache.Remove(opts.CacheKey)
	}

	flight := g.flight.DoChan(opts.CacheKey, func() (any, error) {
		resource, err := g.call(ctx, req)
		if err != nil {
			return nil, err
		}
		g.cache.Add(opts.CacheKey, resource)
		return resource, nil
	})

	select {
	case <-ctx.Done():
		return none(ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			return none(res.Err)
		}
		return SynthesisResult{Provider: ProviderRemote, Audio: res.Val.(*audio.Resource)}
	}
}

func (g *RemoteGateway) call(ctx context.Context, req Request) (resource *audio.Resource, err error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callerCtx := ctx
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s synthesizer panicked: %v", g.synthesizer.Name(), r)
			}
		}()
		resource, err = g.synthesizer.Synthesize(ctx, req)
	}()

	if err != nil {
		// only the request timeout counts, not the caller giving up
		if callerCtx.Err() == nil && g.isOffline(err) {
			g.markOffline(err)
		}
		return nil, fmt.Errorf("%s: %w", g.synthesizer.Name(), err)
	}
	if !resource.Usable() {
		resource.Release()
		return nil, fmt.Errorf("%s: %w", g.synthesizer.Name(), ErrEmptyAudio)
	}
	return resource, nil
}

func (g *RemoteGateway) offline() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now().Before(g.offlineUntil)
}

func (g *RemoteGateway) markOffline(err error) {
	if g.offlineBackoff <= 0 {
		return
	}

	g.mu.Lock()
	g.offlineUntil = g.now().Add(g.offlineBackoff)
	g.mu.Unlock()
	logger.Warn("speech synthesis provider offline", "provider", g.synthesizer.Name(), "error", err, "backoff", g.offlineBackoff)
}

// Offline reports whether the gateway is currently skipping the provider.
func (g *RemoteGateway) Offline() bool {
	return g != nil && g.offline()
}

func (g *RemoteGateway) record(ctx context.Context, mode Mode, result SynthesisResult) {
	outcome := "remote"
	if result.Provider != ProviderRemote {
		outcome = "none"
	}
	requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("outcome", outcome),
	))
}
