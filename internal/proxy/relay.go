package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client posts chat completion requests to the relay endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	backoff    time.Duration
	token      string
}

// NewClient creates a relay client for the given endpoint URL.
// A zero timeout waits on the relay indefinitely.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 0,
		},
		timeout: timeout,
		backoff: initialBackoff,
	}
}

// WithToken makes the client present token as a bearer token to the relay.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// Complete sends the request and returns the raw response body. Any non-2xx
// status is reported as a *StatusError carrying the status and body. Rate
// limited requests are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, req ChatRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		out, err := c.do(ctx, body)
		if err == nil {
			return out, nil
		}
		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			wait := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
