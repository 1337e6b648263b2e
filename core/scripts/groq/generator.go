// Package groq generates session scripts through Groq's OpenAI compatible
// chat completions API with a strict JSON schema response format.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
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
	DefaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "openai/gpt-oss-120b"
)

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
	// TODO: Implement a custom reflector that only satisfies the subset of
	// jsonschema used by groq
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

	reqBody := requestBody{
		Model: g.model,
		Messages: []message{
			{Role: messageRoleSystem, Content: scripts.Instructions},
			{Role: messageRoleUser, Content: req.Prompt()},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "Script",
				Schema: *g.schema,
				Strict: true,
			},
		},
	}
	span.SetAttributes(attribute.String("request.model", g.model))

	content, err := g.complete(ctx, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	script, err := scripts.ParseJSON(content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.segments", len(script.Segments)))
	return script, nil
}

func (g *Generator) complete(ctx context.Context, reqBody requestBody) (string, error) {
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
	if len(responseBody.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return responseBody.Choices[0].Message.Content, nil
}

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem messageRole = "system"
	messageRoleUser   messageRole = "user"
)

type requestBody struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	// Name identifies the schema in the response.
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the generated
	// content.
	Strict bool `json:"strict"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}
