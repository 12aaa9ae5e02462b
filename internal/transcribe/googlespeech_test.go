package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleSpeechPicksBestAlternative(t *testing.T) {
	wav := []byte{0x01, 0x02, 0x03}
	var gotKey string
	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		resp := map[string]interface{}{
			"results": []map[string]interface{}{{
				"alternatives": []map[string]interface{}{
					{"transcript": "ola mundo", "confidence": 0.41},
					{"transcript": "hello", "confidence": 0.93},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	g := NewGoogleSpeech("secret", ts.URL, "pt-BR", ts.Client())
	text, err := g.Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected best alternative, got %q", text)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header missing, got %q", gotKey)
	}

	cfg, _ := gotBody["config"].(map[string]interface{})
	if rate, _ := cfg["sampleRateHertz"].(float64); rate != 44100 {
		t.Fatalf("unexpected sample rate in request: %v", cfg["sampleRateHertz"])
	}
	au, _ := gotBody["audio"].(map[string]interface{})
	content, _ := au["content"].(string)
	want := base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(wav)
	if content != want {
		t.Fatalf("audio content mismatch: want=%q got=%q", want, content)
	}
}

func TestGoogleSpeechNoResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer ts.Close()

	g := NewGoogleSpeech("secret", ts.URL, "", ts.Client())
	_, err := g.Transcribe(context.Background(), []byte{0x01})
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestGoogleSpeechServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer ts.Close()

	g := NewGoogleSpeech("secret", ts.URL, "", ts.Client())
	_, err := g.Transcribe(context.Background(), []byte{0x01})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if errors.Is(err, ErrNoTranscript) {
		t.Fatalf("transport failure must not map to ErrNoTranscript")
	}
}

func TestGoogleSpeechRetriesThenSucceeds(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "transient", 503)
			return
		}
		resp := map[string]interface{}{
			"results": []map[string]interface{}{{
				"alternatives": []map[string]interface{}{{"transcript": "oi", "confidence": 0.8}},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	g := NewGoogleSpeech("secret", ts.URL, "", ts.Client())
	text, err := g.Transcribe(context.Background(), []byte{0x01})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "oi" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}
