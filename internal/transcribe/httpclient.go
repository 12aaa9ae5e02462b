package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/discord-voice-scribe/internal/logging"
)

// postWithRetries posts body to url, retrying transport errors and 5xx
// responses with exponential backoff. Caller must close resp.Body.
func postWithRetries(ctx context.Context, client *http.Client, url, contentType string, headers map[string]string, body []byte, attempts int) (*http.Response, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			logging.Debugw("stt: POST attempt failed", "url", url, "attempt", i+1, "err", err)
			if i < attempts-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(200*(1<<i)) * time.Millisecond):
				}
				continue
			}
			return nil, err
		}
		if resp.StatusCode >= 500 && i < attempts-1 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error status=%d", resp.StatusCode)
			logging.Warnw("stt: server error, retrying", "url", url, "status", resp.StatusCode, "attempt", i+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(200*(1<<i)) * time.Millisecond):
			}
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}
