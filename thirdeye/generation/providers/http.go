// Package providers implements the HTTP backends behind the harness ports:
// the Anthropic Messages API for generation and any OpenAI-compatible
// /v1/embeddings endpoint for embeddings.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness"
)

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 512

// postJSON sends payload to url and returns the response body for 2xx replies.
// Transport and status failures come back as *harness.BackendError, with
// statusKind choosing the kind for non-2xx statuses.
func postJSON(ctx context.Context, client *http.Client, op, url string, headers map[string]string, payload any, statusKind func(int) harness.Kind) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, harness.NewBackendError(op, harness.KindInvalidRequest, 0, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, harness.NewBackendError(op, harness.KindInvalidRequest, 0, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, harness.NewBackendError(op, statusKind(resp.StatusCode), resp.StatusCode, errors.New(truncate(string(respBody), maxErrorBody)))
	}
	return respBody, nil
}

// transportError classifies failures that happen before a status is read.
// Caller cancellation passes through untouched.
func transportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return harness.NewBackendError(op, harness.KindTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return harness.NewBackendError(op, harness.KindTimeout, 0, err)
	}
	return harness.NewBackendError(op, harness.KindUpstream, 0, err)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
