// Package gemini generates session scripts with Google Gemini structured
// output.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/koscakluka/ema-playback/core/scripts"
)

const DefaultModel = "gemini-2.5-flash"

type Generator struct {
	client *genai.Client
	model  string
	schema map[string]any
}

type Option func(*Generator)

func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

func NewGenerator(ctx context.Context, apiKey string, opts ...Option) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	schema, err := responseSchema()
	if err != nil {
		return nil, err
	}

	g := &Generator{client: client, model: DefaultModel, schema: schema}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Generator) GenerateScript(ctx context.Context, req scripts.Request) (*scripts.Script, error) {
	ctx, span := tracer.Start(ctx, "generate script")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", g.model),
		attribute.String("request.topic", req.Topic),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt()), &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(scripts.Instructions, genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: g.schema,
	})
	if err != nil {
		err = fmt.Errorf("error generating script: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	script, err := scripts.ParseJSON(resp.Text())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.segments", len(script.Segments)))
	logger.Debug("generated script", "title", script.Title, "segments", len(script.Segments))
	return script, nil
}

// responseSchema reflects the script type into the plain JSON schema map
// Gemini accepts.
func responseSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&scripts.Script{})

	raw, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("error marshalling script schema: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("error unmarshalling script schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
