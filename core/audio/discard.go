package audio

import (
	"context"
	"time"
)

// DiscardPlayer plays nothing but reports completion after the time the audio
// would have taken to play. It stands in for an output device in headless runs.
type DiscardPlayer struct {
	// MinDuration is used when the resource duration cannot be determined.
	MinDuration time.Duration
}

func (p DiscardPlayer) Play(ctx context.Context, resource *Resource) (Playback, error) {
	duration := p.MinDuration
	if pcm, encoding, err := DecodePCM(resource); err == nil {
		if d := encoding.Duration(len(pcm)); d > duration {
			duration = d
		}
	}

	timer := time.NewTimer(duration)
	completion := NewCompletion(func() { timer.Stop() })
	go func() {
		select {
		case <-timer.C:
			completion.Finish(nil)
		case <-ctx.Done():
			completion.Finish(ctx.Err())
		case <-completion.Done():
		}
	}()

	return completion, nil
}
