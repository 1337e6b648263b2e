// Package config loads the settings of the ema-session command from a YAML
// file and EMA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Session     SessionConfig     `yaml:"session"`
	Script      ScriptConfig      `yaml:"script"`
	TTS         TTSConfig         `yaml:"tts"`
	LocalSpeech LocalSpeechConfig `yaml:"local_speech"`
	Audio       AudioConfig       `yaml:"audio"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Relay       RelayConfig       `yaml:"relay"`
}

type SessionConfig struct {
	LookAhead     int    `yaml:"look_ahead"`
	Voice         string `yaml:"voice"`
	InitTimeoutMS int    `yaml:"init_timeout_ms"`
}

type ScriptConfig struct {
	Source string `yaml:"source"` // gemini, groq, openai, file
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
	File   string `yaml:"file"`
}

type TTSConfig struct {
	// Providers are tried in order, the first one is the primary.
	Providers          []string `yaml:"providers"` // openai, deepgram
	Voice              string   `yaml:"voice"`
	OpenAIAPIKey       string   `yaml:"openai_api_key"`
	OpenAIModel        string   `yaml:"openai_model"`
	OpenAIBaseURL      string   `yaml:"openai_base_url"`
	DeepgramAPIKey     string   `yaml:"deepgram_api_key"`
	DeepgramVoice      string   `yaml:"deepgram_voice"`
	TimeoutMS          int      `yaml:"timeout_ms"`
	RateLimitPerSecond float64  `yaml:"rate_limit_per_second"`
	Burst              int      `yaml:"burst"`
	CacheSize          int      `yaml:"cache_size"`
	OfflineBackoffMS   int      `yaml:"offline_backoff_ms"`
}

type LocalSpeechConfig struct {
	Mode           string  `yaml:"mode"` // exec, timed
	Command        string  `yaml:"command"`
	VoicesCommand  string  `yaml:"voices_command"`
	Voice          string  `yaml:"voice"`
	ReadyTimeoutMS int     `yaml:"ready_timeout_ms"`
	WordsPerSecond float64 `yaml:"words_per_second"`
}

type AudioConfig struct {
	Backend         string `yaml:"backend"` // miniaudio, portaudio, discard
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	Tracing        bool   `yaml:"tracing"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type RelayConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Servers          []string `yaml:"servers"`
	SubjectPrefix    string   `yaml:"subject_prefix"`
	ConnectTimeoutMS int      `yaml:"connect_timeout_ms"`
}

func Default() Config {
	return Config{
		Session: SessionConfig{
			LookAhead:     3,
			InitTimeoutMS: 60000,
		},
		Script: ScriptConfig{
			Source: "file",
			File:   "./scripts",
		},
		TTS: TTSConfig{
			Providers:        []string{"openai"},
			TimeoutMS:        20000,
			Burst:            1,
			CacheSize:        64,
			OfflineBackoffMS: 30000,
		},
		LocalSpeech: LocalSpeechConfig{
			Mode:           "timed",
			ReadyTimeoutMS: 5000,
			WordsPerSecond: 2.5,
		},
		Audio: AudioConfig{
			Backend:         "miniaudio",
			FramesPerBuffer: 1024,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Relay: RelayConfig{
			Servers:          []string{"nats://localhost:4222"},
			SubjectPrefix:    "ema.session",
			ConnectTimeoutMS: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.Session.LookAhead, "EMA_SESSION_LOOK_AHEAD")
	overrideString(&cfg.Session.Voice, "EMA_SESSION_VOICE")
	overrideInt(&cfg.Session.InitTimeoutMS, "EMA_SESSION_INIT_TIMEOUT_MS")
	overrideString(&cfg.Script.Source, "EMA_SCRIPT_SOURCE")
	overrideString(&cfg.Script.Model, "EMA_SCRIPT_MODEL")
	overrideString(&cfg.Script.APIKey, "EMA_SCRIPT_API_KEY")
	overrideString(&cfg.Script.File, "EMA_SCRIPT_FILE")
	overrideStringSlice(&cfg.TTS.Providers, "EMA_TTS_PROVIDERS")
	overrideString(&cfg.TTS.Voice, "EMA_TTS_VOICE")
	overrideString(&cfg.TTS.OpenAIAPIKey, "EMA_TTS_OPENAI_API_KEY")
	overrideString(&cfg.TTS.OpenAIModel, "EMA_TTS_OPENAI_MODEL")
	overrideString(&cfg.TTS.OpenAIBaseURL, "EMA_TTS_OPENAI_BASE_URL")
	overrideString(&cfg.TTS.DeepgramAPIKey, "EMA_TTS_DEEPGRAM_API_KEY")
	overrideString(&cfg.TTS.DeepgramVoice, "EMA_TTS_DEEPGRAM_VOICE")
	overrideInt(&cfg.TTS.TimeoutMS, "EMA_TTS_TIMEOUT_MS")
	overrideFloat(&cfg.TTS.RateLimitPerSecond, "EMA_TTS_RATE_LIMIT_PER_SECOND")
	overrideInt(&cfg.TTS.Burst, "EMA_TTS_BURST")
	overrideInt(&cfg.TTS.CacheSize, "EMA_TTS_CACHE_SIZE")
	overrideInt(&cfg.TTS.OfflineBackoffMS, "EMA_TTS_OFFLINE_BACKOFF_MS")
	overrideString(&cfg.LocalSpeech.Mode, "EMA_LOCAL_SPEECH_MODE")
	overrideString(&cfg.LocalSpeech.Command, "EMA_LOCAL_SPEECH_COMMAND")
	overrideString(&cfg.LocalSpeech.VoicesCommand, "EMA_LOCAL_SPEECH_VOICES_COMMAND")
	overrideString(&cfg.LocalSpeech.Voice, "EMA_LOCAL_SPEECH_VOICE")
	overrideInt(&cfg.LocalSpeech.ReadyTimeoutMS, "EMA_LOCAL_SPEECH_READY_TIMEOUT_MS")
	overrideFloat(&cfg.LocalSpeech.WordsPerSecond, "EMA_LOCAL_SPEECH_WORDS_PER_SECOND")
	overrideString(&cfg.Audio.Backend, "EMA_AUDIO_BACKEND")
	overrideInt(&cfg.Audio.FramesPerBuffer, "EMA_AUDIO_FRAMES_PER_BUFFER")
	overrideString(&cfg.Telemetry.LogLevel, "EMA_TELEMETRY_LOG_LEVEL")
	overrideBool(&cfg.Telemetry.Tracing, "EMA_TELEMETRY_TRACING")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "EMA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "EMA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "EMA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Relay.Enabled, "EMA_RELAY_ENABLED")
	overrideStringSlice(&cfg.Relay.Servers, "EMA_RELAY_SERVERS")
	overrideString(&cfg.Relay.SubjectPrefix, "EMA_RELAY_SUBJECT_PREFIX")
	overrideInt(&cfg.Relay.ConnectTimeoutMS, "EMA_RELAY_CONNECT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, part := range strings.Split(value, ",") {
			if s := strings.TrimSpace(part); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Session.LookAhead <= 0 {
		return errors.New("session.look_ahead must be >= 1")
	}
	if cfg.Session.InitTimeoutMS <= 0 {
		return errors.New("session.init_timeout_ms must be positive")
	}

	switch cfg.Script.Source {
	case "gemini", "groq", "openai":
	case "file":
		if cfg.Script.File == "" {
			return errors.New("script.file must be set when source=file")
		}
	default:
		return errors.New("script.source must be one of gemini|groq|openai|file")
	}

	for _, provider := range cfg.TTS.Providers {
		switch provider {
		case "openai", "deepgram":
		default:
			return fmt.Errorf("tts.providers: unknown provider %q, must be one of openai|deepgram", provider)
		}
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return errors.New("tts.timeout_ms must be positive")
	}
	if cfg.TTS.RateLimitPerSecond < 0 {
		return errors.New("tts.rate_limit_per_second must be >= 0")
	}
	if cfg.TTS.RateLimitPerSecond > 0 && cfg.TTS.Burst <= 0 {
		return errors.New("tts.burst must be >= 1 when a rate limit is set")
	}
	if cfg.TTS.CacheSize <= 0 {
		return errors.New("tts.cache_size must be >= 1")
	}
	if cfg.TTS.OfflineBackoffMS < 0 {
		return errors.New("tts.offline_backoff_ms must be >= 0")
	}

	switch cfg.LocalSpeech.Mode {
	case "timed":
		if cfg.LocalSpeech.WordsPerSecond <= 0 {
			return errors.New("local_speech.words_per_second must be positive")
		}
	case "exec":
		if cfg.LocalSpeech.Command == "" {
			return errors.New("local_speech.command must be set when mode=exec")
		}
	default:
		return errors.New("local_speech.mode must be one of exec|timed")
	}

	switch cfg.Audio.Backend {
	case "miniaudio", "discard":
	case "portaudio":
		if cfg.Audio.FramesPerBuffer <= 0 {
			return errors.New("audio.frames_per_buffer must be positive when backend=portaudio")
		}
	default:
		return errors.New("audio.backend must be one of miniaudio|portaudio|discard")
	}

	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}

	if cfg.Relay.Enabled {
		if len(cfg.Relay.Servers) == 0 {
			return errors.New("relay.servers must not be empty when the relay is enabled")
		}
		if cfg.Relay.SubjectPrefix == "" {
			return errors.New("relay.subject_prefix must not be empty when the relay is enabled")
		}
	}
	return nil
}

func (c SessionConfig) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutMS) * time.Millisecond
}

func (c TTSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c TTSConfig) OfflineBackoff() time.Duration {
	return time.Duration(c.OfflineBackoffMS) * time.Millisecond
}

func (c LocalSpeechConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

func (c RelayConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}
