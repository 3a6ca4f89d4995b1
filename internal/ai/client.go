package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 90 * time.Second
	maxErrorBodySize = 4 * 1024
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// StatusError is returned when a provider answers with a non-2xx status and a body
// that could not be decoded into a provider specific error.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// postJSON sends body as JSON and returns the status code and the raw response.
func postJSON(ctx context.Context, client *http.Client, url string, headers http.Header, body any) (int, []byte, error) {
	if client == nil {
		return 0, nil, fmt.Errorf("http client is nil")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

func statusError(provider string, status int, raw []byte) error {
	body := raw
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	return &StatusError{Provider: provider, Status: status, Body: strings.TrimSpace(string(body))}
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }
