package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TokenSource returns the bearer token of the current session, or "" when
// requests should be made with the project key only.
type TokenSource func() string

// Client is a thin HTTP client for the backend row API.
// It handles key and bearer authentication, JSON marshaling, and
// retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	apiKey     string
	token      TokenSource
	httpClient *http.Client
	maxRetries uint64

	// initialInterval is the first backoff delay after a 429 without
	// Retry-After.
	initialInterval time.Duration
}

// NewClient creates a new row API client. The baseURL should be the root URL
// of the backend project. apiKey is the public project key.
func NewClient(baseURL, apiKey string, token TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:      3,
		initialInterval: time.Second,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Patch performs an HTTP PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// rateLimitedError marks a 429 response so the retry loop can honour the
// server's Retry-After hint.
type rateLimitedError struct {
	method, path string
	wait         time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (429) on %s %s", e.method, e.path)
}

// do builds the request, handles auth, rate limiting with exponential
// backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var serverWait time.Duration
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = 30 * time.Second
	retry := backoff.WithContext(
		&retryAfter{BackOff: backoff.WithMaxRetries(policy, c.maxRetries), wait: &serverWait},
		ctx,
	)

	operation := func() error {
		err := c.attempt(ctx, method, path, url, payload, result)
		if rl, ok := err.(*rateLimitedError); ok {
			serverWait = rl.wait
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	err := backoff.Retry(operation, retry)
	if _, ok := err.(*rateLimitedError); ok {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, err)
	}
	return err
}

// retryAfter prefers the server's Retry-After hint over the computed backoff.
type retryAfter struct {
	backoff.BackOff
	wait *time.Duration
}

func (r *retryAfter) NextBackOff() time.Duration {
	next := r.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if *r.wait > 0 {
		return *r.wait
	}
	return next
}

func (c *Client) attempt(
	ctx context.Context,
	method, path, url string,
	payload []byte,
	result interface{},
) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	bearer := c.apiKey
	if token := c.token(); token != "" {
		bearer = token
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitedError{method: method, path: path, wait: retryAfterHeader(resp)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{
			Message: fmt.Sprintf("authentication failed (401) on %s %s", method, path),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf(
				"backend error (%d) on %s %s: %s",
				resp.StatusCode, method, path, apiErr.Message,
			)
		}
		return fmt.Errorf(
			"unexpected status %d on %s %s: %s",
			resp.StatusCode, method, path, string(respBody),
		)
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}

	return nil
}

// retryAfterHeader reads the Retry-After header in seconds. Zero means the
// header was absent or unparseable.
func retryAfterHeader(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
