package gemini

import "testing"

func TestResponseSchemaDescribesSegments(t *testing.T) {
	schema, err := responseSchema()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := schema["$schema"]; ok {
		t.Fatalf("expected $schema to be removed")
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties in schema, got %v", schema)
	}
	if _, ok := properties["segments"]; !ok {
		t.Fatalf("expected segments property, got %v", properties)
	}
}

func TestWithModelIgnoresEmpty(t *testing.T) {
	g := &Generator{model: DefaultModel}
	WithModel("")(g)
	if g.model != DefaultModel {
		t.Fatalf("expected default model to be kept, got %q", g.model)
	}
	WithModel("gemini-2.5-pro")(g)
	if g.model != "gemini-2.5-pro" {
		t.Fatalf("expected model override, got %q", g.model)
	}
}
