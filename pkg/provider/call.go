package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Complete performs a non-streaming call and returns the answer text.
func Complete(ctx context.Context, client *http.Client, a Adapter, prompt Prompt) (string, error) {
	req, err := a.BuildRequest(ctx, prompt, false)
	if err != nil {
		return "", err
	}

	res, err := do(client, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("provider: read %s response: %w", a.Kind(), err)
	}
	return a.ParseResponse(body)
}

// Open starts a streaming call. On success the caller owns the response body.
func Open(ctx context.Context, client *http.Client, a Adapter, prompt Prompt) (*http.Response, error) {
	req, err := a.BuildRequest(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (*http.Response, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: request %s: %w", req.URL.Host, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer func() { _ = res.Body.Close() }()
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Body:       string(buf),
		}
	}
	return res, nil
}
