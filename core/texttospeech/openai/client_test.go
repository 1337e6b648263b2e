package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-playback/core/audio"
	"github.com/koscakluka/ema-playback/core/texttospeech"
)

func TestSynthesizeRequestsWAV(t *testing.T) {
	var captured speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL})
	resource, err := client.Synthesize(context.Background(), texttospeech.Request{Text: "hello", Voice: "nova"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resource.MimeType != audio.MimeTypeWAV || string(resource.Data()) != "RIFF-audio" {
		t.Fatalf("unexpected resource %+v", resource)
	}
	if captured.Voice != "nova" || captured.Input != "hello" || captured.ResponseFormat != "wav" || captured.Model != DefaultModel {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestSynthesizeUsesDefaultVoice(t *testing.T) {
	var captured speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	if _, err := NewClient(Config{BaseURL: server.URL}).Synthesize(context.Background(), texttospeech.Request{Text: "hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Voice != DefaultVoice {
		t.Fatalf("expected default voice, got %q", captured.Voice)
	}
}

func TestSynthesizeReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Synthesize(context.Background(), texttospeech.Request{Text: "hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if texttospeech.IsOffline(err) {
		t.Fatalf("expected a rejected request not to classify as offline, got %v", err)
	}
}

func TestSynthesizeUnreachableIsOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(Config{BaseURL: url}).Synthesize(context.Background(), texttospeech.Request{Text: "hello"})
	if !texttospeech.IsOffline(err) {
		t.Fatalf("expected unreachable server to classify as offline, got %v", err)
	}
}
