package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/koscakluka/ema-playback/core/audio"
)

// Player renders audio resources on the default output device. It plays one
// resource at a time; starting a new one stops the previous.
type Player struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playback     playbackClient

	mu      sync.Mutex
	current *audio.Completion
}

func NewPlayer() (*Player, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &Player{audioContext: audioCtx}, nil
}

func (p *Player) Play(ctx context.Context, resource *audio.Resource) (audio.Playback, error) {
	pcm, encoding, err := audio.DecodePCM(resource)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}

	if err := p.playback.Configure(p.audioContext, encoding); err != nil {
		return nil, fmt.Errorf("failed to configure playback device: %w", err)
	}
	if err := p.playback.Start(); err != nil {
		return nil, err
	}

	completion := audio.NewCompletion(p.playback.ClearBuffer)

	if err := p.playback.SendAudio(pcm); err != nil {
		return nil, err
	}
	p.playback.Mark(resource.ID, func(string) { completion.Finish(nil) })
	p.current = completion

	go func() {
		select {
		case <-ctx.Done():
			completion.Stop()
		case <-completion.Done():
		}
	}()

	return completion, nil
}

func (p *Player) Close() error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()
	if current != nil {
		current.Stop()
	}

	_ = p.playback.Uninit()
	if err := p.audioContext.Uninit(); err != nil {
		return fmt.Errorf("failed to uninitialize audio context: %w", err)
	}
	p.audioContext.Free()
	return nil
}
