// Package openai generates session scripts with the OpenAI Responses API and
// structured outputs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-playback/core/scripts"
)

const (
	DefaultURL   = "https://api.openai.com/v1/responses"
	DefaultModel = "gpt-4.1-mini"
)

// ErrRefused is returned when the model declines to write the script.
var ErrRefused = errors.New("model refused to generate the script")

type Generator struct {
	apiKey string
	model  string
	url    string
	client *http.Client
	schema *jsonschema.Schema
}

type Option func(*Generator)

func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

func WithURL(url string) Option {
	return func(g *Generator) { g.url = url }
}

func NewGenerator(apiKey string, opts ...Option) *Generator {
	reflector := jsonschema.Reflector{DoNotReference: true}
	g := &Generator{
		apiKey: apiKey,
		model:  DefaultModel,
		url:    DefaultURL,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		schema: reflector.Reflect(&scripts.Script{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) GenerateScript(ctx context.Context, req scripts.Request) (*scripts.Script, error) {
	ctx, span := tracer.Start(ctx, "generate script")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", g.model))

	reqBody := requestBody{
		Model: g.model,
		Input: []inputMessage{
			{Type: messageTypeMessage, Role: messageRoleDeveloper, Content: scripts.Instructions},
			{Type: messageTypeMessage, Role: messageRoleUser, Content: req.Prompt()},
		},
		Text: &textOptions{Format: textFormat{
			Type:   "json_schema",
			Name:   "Script",
			Schema: *g.schema,
			Strict: true,
		}},
	}

	content, err := g.respond(ctx, reqBody)
	if err == nil {
		var script *scripts.Script
		if script, err = scripts.ParseJSON(content); err == nil {
			span.SetAttributes(attribute.Int("response.segments", len(script.Segments)))
			return script, nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (g *Generator) respond(ctx context.Context, reqBody requestBody) (string, error) {
	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("script request failed", "status", resp.Status, "body", string(errorBody))
		return "", fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var responseBody responseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", fmt.Errorf("error decoding response body: %w", err)
	}
	return outputText(responseBody)
}

// outputText collects the text of every message output item. Reasoning and
// other item types are skipped.
func outputText(body responseBody) (string, error) {
	var text string
	for _, output := range body.Output {
		var outputType outputItemType
		if err := json.Unmarshal(output, &outputType); err != nil {
			return "", fmt.Errorf("error unmarshalling output type: %w", err)
		}
		if outputType.Type != messageTypeMessage {
			continue
		}

		var message outputMessage
		if err := json.Unmarshal(output, &message); err != nil {
			return "", fmt.Errorf("error unmarshalling output message: %w", err)
		}
		for _, content := range message.Content {
			switch content.Type {
			case "output_text":
				text += content.Text
			case "refusal":
				return "", fmt.Errorf("%w: %s", ErrRefused, content.Refusal)
			}
		}
	}

	if text == "" {
		return "", errors.New("response has no output text")
	}
	return text, nil
}

type messageType string

const messageTypeMessage messageType = "message"

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
)

type inputMessage struct {
	Type    messageType `json:"type"`
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type requestBody struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text  *textOptions   `json:"text,omitempty"`
}

type textOptions struct {
	Format textFormat `json:"format"`
}

type textFormat struct {
	Type   string            `json:"type"`
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	Strict bool              `json:"strict"`
}

type responseBody struct {
	Output []json.RawMessage `json:"output"`
}

type outputItemType struct {
	Type messageType `json:"type"`
}

type outputMessage struct {
	Content []struct {
		// Type is 'output_text' or 'refusal'.
		Type    string `json:"type"`
		Text    string `json:"text,omitempty"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"content"`
}
