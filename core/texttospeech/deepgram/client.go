// Package deepgram synthesizes speech over the Deepgram speak websocket API.
package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/koscakluka/ema-playback/core/audio"
)

const defaultEndpoint = "wss://api.deepgram.com/v1/speak"

type Client struct {
	apiKey   string
	endpoint string
	voice    deepgramVoice
	encoding audio.EncodingInfo
	dialer   *websocket.Dialer
}

type Option func(*Client)

// WithEndpoint overrides the speak websocket URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithEncodingInfo sets the linear16 sample rate requested from Deepgram.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(c *Client) {
		if encodingInfo.SampleRate == 0 || encodingInfo.Format != audio.EncodingLinear16 {
			logger.Warn("ignoring unsupported encoding", "format", encodingInfo.Format.Name(), "sample_rate", encodingInfo.SampleRate)
			return
		}
		c.encoding = encodingInfo
	}
}

func NewClient(apiKey string, voice string, opts ...Option) (*Client, error) {
	client := &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		voice:    defaultVoice,
		encoding: audio.GetDefaultEncodingInfo(),
		dialer:   websocket.DefaultDialer,
	}

	if voice != "" {
		if !slices.Contains(GetAvailableVoices(), deepgramVoice(voice)) {
			return nil, fmt.Errorf("invalid voice %q", voice)
		}
		client.voice = deepgramVoice(voice)
	}

	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) Name() string { return "deepgram" }

func (c *Client) connect(ctx context.Context, voice deepgramVoice) (*websocket.Conn, error) {
	urlValues := url.Values{}
	urlValues.Set("encoding", c.encoding.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.encoding.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := c.dialer.DialContext(ctx,
		c.endpoint+"?"+urlValues.Encode(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}
