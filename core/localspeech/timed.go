package localspeech

import (
	"context"
	"strings"
	"time"

	"github.com/koscakluka/ema-playback/core/audio"
)

const DefaultWordsPerSecond = 2.5

// TimedEngine produces no sound. It completes each utterance after the time
// it would take to read aloud, which keeps headless sessions paced.
type TimedEngine struct {
	WordsPerSecond float64
	MinDuration    time.Duration
}

func (TimedEngine) Ready(context.Context) error { return nil }

func (e TimedEngine) Speak(ctx context.Context, text, _ string) (audio.Playback, error) {
	timer := time.NewTimer(e.Duration(text))
	completion := audio.NewCompletion(func() { timer.Stop() })
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

// Duration estimates how long text takes to speak.
func (e TimedEngine) Duration(text string) time.Duration {
	wps := e.WordsPerSecond
	if wps <= 0 {
		wps = DefaultWordsPerSecond
	}
	words := len(strings.Fields(text))
	return max(time.Duration(float64(words)/wps*float64(time.Second)), e.MinDuration)
}

func (TimedEngine) Voices(context.Context) ([]string, error) {
	return []string{"silent"}, nil
}
