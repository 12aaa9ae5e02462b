package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Whisper posts WAV bytes to a Whisper-compatible HTTP endpoint and reads
// the transcript from the JSON "text" field.
type Whisper struct {
	url    string
	client *http.Client
}

// NewWhisper builds a client for endpoint. language, when non-empty, is added
// as a query parameter.
func NewWhisper(endpoint, language string, client *http.Client) *Whisper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if language != "" {
		if u, err := url.Parse(endpoint); err == nil {
			q := u.Query()
			q.Set("language", language)
			u.RawQuery = q.Encode()
			endpoint = u.String()
		}
	}
	return &Whisper{url: endpoint, client: client}
}

// Transcribe sends the WAV bytes and returns the trimmed transcript.
// An empty transcript maps to ErrNoTranscript.
func (w *Whisper) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := postWithRetries(ctx, w.client, w.url, "audio/wav", nil, wav, 3)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("whisper returned status %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrNoTranscript
	}
	return text, nil
}
