package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	wav := []byte{0x10, 0x20}
	var gotContentType string
	var gotBody []byte
	var gotLanguage string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotLanguage = r.URL.Query().Get("language")
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{"text": "  hello there "})
	}))
	defer ts.Close()

	wc := NewWhisper(ts.URL, "pt", ts.Client())
	text, err := wc.Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if gotContentType != "audio/wav" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	if gotLanguage != "pt" {
		t.Fatalf("language query not set, got %q", gotLanguage)
	}
	if len(gotBody) != len(wav) {
		t.Fatalf("body length mismatch: want=%d got=%d", len(wav), len(gotBody))
	}
}

func TestWhisperEmptyText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	}))
	defer ts.Close()

	wc := NewWhisper(ts.URL, "", ts.Client())
	_, err := wc.Transcribe(context.Background(), []byte{0x01})
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}
