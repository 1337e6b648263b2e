package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/koscakluka/ema-playback/core/audio"
)

const DefaultFramesPerBuffer = 1024

// Player writes audio resources to the default PortAudio output stream. A
// stream is opened per resource so every resource plays at its own rate.
type Player struct {
	framesPerBuffer int

	mu      sync.Mutex
	current *audio.Completion
	writers sync.WaitGroup
}

func NewPlayer(framesPerBuffer int) (*Player, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &Player{framesPerBuffer: framesPerBuffer}, nil
}

func (p *Player) Play(ctx context.Context, resource *audio.Resource) (audio.Playback, error) {
	pcm, encoding, err := audio.DecodePCM(resource)
	if err != nil {
		return nil, err
	}

	channels := max(encoding.Channels, 1)
	out := make([]int16, p.framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(encoding.SampleRate), p.framesPerBuffer, out)
	if err != nil {
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	var stopped atomic.Bool
	completion := audio.NewCompletion(func() { stopped.Store(true) })

	p.mu.Lock()
	previous := p.current
	p.current = completion
	p.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}

	p.writers.Add(1)
	go func() {
		defer p.writers.Done()
		err := p.write(ctx, stream, pcm, out, &stopped)
		if stopErr := stream.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
		stream.Close()
		completion.Finish(err)
	}()

	return completion, nil
}

func (p *Player) write(ctx context.Context, stream *portaudio.Stream, pcm []byte, out []int16, stopped *atomic.Bool) error {
	chunkSize := len(out) * 2
	for offset := 0; offset < len(pcm); offset += chunkSize {
		if stopped.Load() {
			return audio.ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(offset+chunkSize, len(pcm))
		chunk := pcm[offset:end]
		if len(chunk) < chunkSize {
			padded := make([]byte, chunkSize)
			copy(padded, chunk)
			chunk = padded
		}

		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, out); err != nil {
			return err
		}
		if err := stream.Write(); err != nil {
			logger.Warn("failed to write to PortAudio stream", "error", err)
			return err
		}
	}
	return nil
}

func (p *Player) Close() error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()
	if current != nil {
		current.Stop()
	}
	p.writers.Wait()

	return portaudio.Terminate()
}
