// Package providerhttp holds the JSON-over-HTTP plumbing shared by the
// OpenAI-compatible and Ollama provider adapters.
package providerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// maxErrorBody bounds the response text carried in provider errors.
const maxErrorBody = 512

// Do sends a JSON request and decodes a JSON response into out.
//
// Transport failures and 408/429/5xx responses come back as
// *domain.RetrievableError; other non-2xx responses as *domain.FatalError.
// A nil in skips the request body and a nil out discards the response.
func Do(ctx context.Context, client *http.Client, op, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return domain.Fatal(op, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return domain.Fatal(op, fmt.Errorf("create request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return domain.Retrievable(op, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Retrievable(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ClassifyHTTPStatus(op, resp.StatusCode, Truncate(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Fatal(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Truncate shortens provider text for inclusion in error messages.
func Truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}

// ToFloat32 converts a JSON-decoded vector.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
