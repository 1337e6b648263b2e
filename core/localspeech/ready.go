package localspeech

import (
	"context"
	"sync"
	"time"
)

const DefaultReadyTimeout = 5 * time.Second

// readiness runs a probe once per engine. The probe is detached from the
// caller so a cancelled first caller does not decide the outcome for later
// ones; it is bounded by its own timeout instead.
type readiness struct {
	probe   func(ctx context.Context) error
	timeout time.Duration

	once sync.Once
	done chan struct{}
	err  error
}

func newReadiness(timeout time.Duration, probe func(ctx context.Context) error) *readiness {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	return &readiness{probe: probe, timeout: timeout, done: make(chan struct{})}
}

func (r *readiness) Wait(ctx context.Context) error {
	r.once.Do(func() {
		go func() {
			probeCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			r.err = r.probe(probeCtx)
			if r.err != nil {
				logger.Warn("local speech engine not ready", "error", r.err)
			}
			close(r.done)
		}()
	})

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
