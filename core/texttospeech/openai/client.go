// Package openai synthesizes speech with the OpenAI audio/speech API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini-tts"
	DefaultVoice   = "alloy"
)

type Client struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	client  *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

func NewClient(cfg Config) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		voice:   cfg.Voice,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.voice == "" {
		c.voice = DefaultVoice
	}
	return c
}

func (c *Client) Name() string { return "openai" }

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize requests WAV audio, which carries its own encoding and can be
// handed to any player without further negotiation.
func (c *Client) Synthesize(ctx context.Context, req texttospeech.Request) (*audio.Resource, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	voice := req.Voice
	if voice == "" {
		voice = c.voice
	}
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.String("request.voice", voice),
	)

	body, err := json.Marshal(speechRequest{
		Model:          c.model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal openai tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("openai tts request failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("openai tts error %d: %s", resp.StatusCode, string(errBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai tts response: %w", err)
	}
	if len(data) == 0 {
		return nil, texttospeech.ErrEmptyAudio
	}

	return audio.NewResource(data, audio.MimeTypeWAV, audio.EncodingInfo{}), nil
}
