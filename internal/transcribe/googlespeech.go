package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/discord-voice-scribe/internal/audio"
	"github.com/discord-voice-scribe/internal/logging"
)

// GoogleSpeech calls the Google Cloud Speech REST recognize endpoint with an
// API key. Audio is sent base64-encoded inline, mono 16-bit at the declared
// sample rate.
type GoogleSpeech struct {
	apiKey   string
	url      string
	language string
	client   *http.Client
}

// NewGoogleSpeech builds a client. url and language fall back to the v1
// recognize endpoint and pt-BR when empty.
func NewGoogleSpeech(apiKey, url, language string, client *http.Client) *GoogleSpeech {
	if url == "" {
		url = "https://speech.googleapis.com/v1/speech:recognize"
	}
	if language == "" {
		language = "pt-BR"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleSpeech{apiKey: apiKey, url: url, language: language, client: client}
}

type googleSpeechAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
}

type googleSpeechResult struct {
	Alternatives []googleSpeechAlternative `json:"alternatives"`
}

type googleSpeechResponse struct {
	Results []googleSpeechResult `json:"results"`
}

// bestAlternative returns the highest-confidence alternative of the first
// result, or nil when the response carries none.
func (r *googleSpeechResponse) bestAlternative() *googleSpeechAlternative {
	if len(r.Results) == 0 {
		return nil
	}
	var best *googleSpeechAlternative
	for i := range r.Results[0].Alternatives {
		a := &r.Results[0].Alternatives[i]
		if best == nil || a.Confidence > best.Confidence {
			best = a
		}
	}
	return best
}

// Transcribe sends the WAV bytes for recognition. It returns ErrNoTranscript
// when the service answers without results.
func (g *GoogleSpeech) Transcribe(ctx context.Context, wav []byte) (string, error) {
	payload := map[string]interface{}{
		"config": map[string]interface{}{
			"sampleRateHertz":   audio.TranscribeSampleRate,
			"languageCode":      g.language,
			"audioChannelCount": 1,
		},
		"audio": map[string]interface{}{
			"content": base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(wav),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal recognize request: %w", err)
	}

	headers := map[string]string{"X-goog-api-key": g.apiKey}
	resp, err := postWithRetries(ctx, g.client, g.url, "application/json", headers, body, 3)
	if err != nil {
		return "", fmt.Errorf("google speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("google speech returned status %d", resp.StatusCode)
	}

	var out googleSpeechResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode recognize response: %w", err)
	}

	best := out.bestAlternative()
	if best == nil || strings.TrimSpace(best.Transcript) == "" {
		logging.Debugw("google speech: response without transcript")
		return "", ErrNoTranscript
	}
	return strings.TrimSpace(best.Transcript), nil
}
