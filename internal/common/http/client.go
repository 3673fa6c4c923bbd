// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rtl-testgen/internal/common/logger"
)

const maxErrorBody = 4096

// ServiceClient posts JSON to a downstream service and retries transient failures.
type ServiceClient struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	policy       RetryPolicy
	logger       logger.Logger
}

type Option func(*ServiceClient)

func WithMaxRetries(n int) Option {
	return func(c *ServiceClient) { c.policy.MaxAttempts = n }
}

func WithBackoffBase(d time.Duration) Option {
	return func(c *ServiceClient) { c.policy.BaseDelay = d }
}

func WithLogger(log logger.Logger) Option {
	return func(c *ServiceClient) { c.logger = log }
}

func NewServiceClient(baseURL string, timeout time.Duration, opts ...Option) *ServiceClient {
	c := &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// Streaming responses are bounded by the request context only.
		streamClient: &http.Client{},
		policy:       DefaultRetryPolicy(),
		logger:       logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ServiceClient) Post(ctx context.Context, endpoint string, payload, out interface{}) error {
	return c.PostWithRetries(ctx, endpoint, payload, out, c.policy.MaxAttempts)
}

func (c *ServiceClient) PostWithRetries(ctx context.Context, endpoint string, payload, out interface{}, maxRetries int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.doWithRetries(ctx, http.MethodPost, endpoint, body, out, maxRetries)
}

func (c *ServiceClient) Get(ctx context.Context, endpoint string, out interface{}) error {
	return c.doWithRetries(ctx, http.MethodGet, endpoint, nil, out, c.policy.MaxAttempts)
}

// OpenStream sends a single POST and hands back the live response body. Callers must close it.
func (c *ServiceClient) OpenStream(ctx context.Context, endpoint string, payload interface{}) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := c.send(ctx, c.streamClient, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *ServiceClient) doWithRetries(ctx context.Context, method, endpoint string, body []byte, out interface{}, maxRetries int) error {
	policy := c.policy
	policy.MaxAttempts = maxRetries
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("Retrying request", map[string]interface{}{
			"endpoint": endpoint,
			"attempt":  attempt,
			"delay":    delay.String(),
			"error":    err.Error(),
		})
	}

	return Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		resp, err := c.send(ctx, c.httpClient, method, endpoint, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
		}
		return nil
	})
}

func (c *ServiceClient) send(ctx context.Context, client *http.Client, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	return resp, nil
}
