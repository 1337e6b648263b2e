package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	session "github.com/koscakluka/ema-playback/core"
	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/audio/miniaudio"
	"github.com/koscakluka/ema-playback/core/audio/portaudio"
	"github.com/koscakluka/ema-playback/core/localspeech"
	"github.com/koscakluka/ema-playback/core/scripts/file"
	"github.com/koscakluka/ema-playback/core/scripts/gemini"
	"github.com/koscakluka/ema-playback/core/scripts/groq"
	scriptopenai "github.com/koscakluka/ema-playback/core/scripts/openai"
	"github.com/koscakluka/ema-playback/core/texttospeech"
	"github.com/koscakluka/ema-playback/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-playback/core/texttospeech/openai"
	"github.com/koscakluka/ema-playback/internal/config"
)

func buildGenerator(ctx context.Context, cfg config.ScriptConfig) (session.ScriptGenerator, error) {
	switch cfg.Source {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, errors.New("script.api_key is required for gemini")
		}
		return gemini.NewGenerator(ctx, cfg.APIKey, gemini.WithModel(cfg.Model))
	case "groq":
		if cfg.APIKey == "" {
			return nil, errors.New("script.api_key is required for groq")
		}
		return groq.NewGenerator(cfg.APIKey, groq.WithModel(cfg.Model)), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("script.api_key is required for openai")
		}
		return scriptopenai.NewGenerator(cfg.APIKey, scriptopenai.WithModel(cfg.Model)), nil
	case "file":
		return file.Generator{Path: cfg.File}, nil
	default:
		return nil, fmt.Errorf("unknown script source %q", cfg.Source)
	}
}

// buildGateway returns nil when no remote provider is usable, in which case
// every segment is spoken locally.
func buildGateway(cfg config.TTSConfig, logger *slog.Logger) (session.SynthesisGateway, error) {
	var synthesizers []texttospeech.Synthesizer
	for _, name := range cfg.Providers {
		switch name {
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				logger.Warn("skipping openai speech provider without api key")
				continue
			}
			synthesizers = append(synthesizers, openai.NewClient(openai.Config{
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Model:   cfg.OpenAIModel,
				Voice:   cfg.Voice,
			}))
		case "deepgram":
			if cfg.DeepgramAPIKey == "" {
				logger.Warn("skipping deepgram speech provider without api key")
				continue
			}
			client, err := deepgram.NewClient(cfg.DeepgramAPIKey, cfg.DeepgramVoice)
			if err != nil {
				return nil, fmt.Errorf("failed to create deepgram client: %w", err)
			}
			synthesizers = append(synthesizers, client)
		default:
			return nil, fmt.Errorf("unknown speech provider %q", name)
		}
	}
	if len(synthesizers) == 0 {
		return nil, nil
	}

	var synthesizer texttospeech.Synthesizer = synthesizers[0]
	if len(synthesizers) > 1 {
		synthesizer = texttospeech.NewFallbackSynthesizer(synthesizers[0], synthesizers[1:]...)
	}

	opts := []texttospeech.GatewayOption{
		texttospeech.WithRequestTimeout(cfg.Timeout()),
		texttospeech.WithOfflineBackoff(cfg.OfflineBackoff()),
		texttospeech.WithCacheSize(cfg.CacheSize),
	}
	if cfg.RateLimitPerSecond > 0 {
		opts = append(opts, texttospeech.WithRateLimit(cfg.RateLimitPerSecond, cfg.Burst))
	}
	return texttospeech.NewRemoteGateway(synthesizer, opts...), nil
}

type localEngine interface {
	session.LocalSpeech
	Voices(ctx context.Context) ([]string, error)
}

func buildLocalSpeech(cfg config.LocalSpeechConfig) (localEngine, error) {
	switch cfg.Mode {
	case "exec":
		return localspeech.NewExecEngine(localspeech.ExecConfig{
			Command:       cfg.Command,
			VoicesCommand: cfg.VoicesCommand,
			DefaultVoice:  cfg.Voice,
			ReadyTimeout:  cfg.ReadyTimeout(),
		})
	case "timed":
		return localspeech.TimedEngine{WordsPerSecond: cfg.WordsPerSecond}, nil
	default:
		return nil, fmt.Errorf("unknown local speech mode %q", cfg.Mode)
	}
}

type player interface {
	session.AudioPlayer
	Close() error
}

type discardPlayer struct{ audio.DiscardPlayer }

func (discardPlayer) Close() error { return nil }

func buildPlayer(cfg config.AudioConfig) (player, error) {
	switch cfg.Backend {
	case "miniaudio":
		return miniaudio.NewPlayer()
	case "portaudio":
		return portaudio.NewPlayer(cfg.FramesPerBuffer)
	case "discard":
		return discardPlayer{}, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}
