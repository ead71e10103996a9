package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// NewRemoteHandler returns a handler that posts its input as JSON to url and
// decodes the JSON object in the reply. A nil client gets a client bounded by
// DefaultTimeout.
func NewRemoteHandler(url string, client *http.Client) Handler {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return HandlerFunc(func(ctx context.Context, in Input) (map[string]any, error) {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode remote input: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call remote skill: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("remote skill returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
		}

		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode remote output: %w", err)
		}
		return out, nil
	})
}
