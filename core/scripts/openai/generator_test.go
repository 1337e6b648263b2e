package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-playback/core/scripts"
)

func TestGenerateScriptReadsMessageOutput(t *testing.T) {
	var captured struct {
		Model string         `json:"model"`
		Input []inputMessage `json:"input"`
		Text  struct {
			Format struct {
				Type string `json:"type"`
				Name string `json:"name"`
			} `json:"format"`
		} `json:"text"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"output":[
			{"type":"reasoning","id":"rs_1"},
			{"type":"message","id":"msg_1","content":[{"type":"output_text","text":"{\"title\":\"t\",\"segments\":[{\"id\":\"a\",\"text\":\"hello\"},{\"id\":\"b\",\"text\":\"bye\"}]}"}]}
		]}`))
	}))
	defer server.Close()

	generator := NewGenerator("key", WithURL(server.URL))
	script, err := generator.GenerateScript(context.Background(), scripts.Request{Topic: "sleep"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Segments) != 2 || script.Segments[1].Text != "bye" {
		t.Fatalf("unexpected script %+v", script)
	}
	if captured.Model != DefaultModel {
		t.Fatalf("expected default model, got %q", captured.Model)
	}
	if captured.Text.Format.Type != "json_schema" || captured.Text.Format.Name != "Script" {
		t.Fatalf("expected json_schema text format, got %+v", captured.Text.Format)
	}
	if len(captured.Input) != 2 || captured.Input[0].Role != messageRoleDeveloper {
		t.Fatalf("expected developer instructions first, got %+v", captured.Input)
	}
}

func TestGenerateScriptReportsRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"refusal","refusal":"no"}]}]}`))
	}))
	defer server.Close()

	_, err := NewGenerator("key", WithURL(server.URL)).GenerateScript(context.Background(), scripts.Request{})
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("expected %v, got %v", ErrRefused, err)
	}
}

func TestGenerateScriptWithoutOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	}))
	defer server.Close()

	if _, err := NewGenerator("key", WithURL(server.URL)).GenerateScript(context.Background(), scripts.Request{}); err == nil {
		t.Fatalf("expected error without output text")
	}
}
