// Package dune is a client for the Dune Analytics execution API: execute a
// saved query with bound parameters, poll the execution until it reaches a
// terminal state, and fetch result rows.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tron-netflow/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL         = "https://api.dune.com/api/v1"
	DefaultTimeout         = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 1 * time.Second
	DefaultMaxDelay        = 60 * time.Second
	DefaultBackoffMult     = 2.0
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 30
)

// APIKeyHeader carries the platform API key.
const APIKeyHeader = "X-DUNE-API-KEY"

// ErrExecutionFailed is returned when an execution ends in a failed or
// cancelled state.
var ErrExecutionFailed = errors.New("query execution failed")

// ErrExecutionTimeout is returned when an execution does not reach a terminal
// state within the poll budget.
var ErrExecutionTimeout = errors.New("query execution timed out")

// HTTPError is a non-2xx response that was not retried away.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dune API status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("dune API status %d", e.StatusCode)
}

// Client calls the Dune execution API over HTTP.
type Client struct {
	baseURL         string
	apiKey          string
	client          *http.Client
	maxRetries      int
	retryDelay      time.Duration
	maxDelay        time.Duration
	backoffMult     float64
	pollInterval    time.Duration
	maxPollAttempts int
	performance     string
	jitter          func() time.Duration
	metrics         *observability.Metrics
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts per request.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithPollInterval sets the delay between execution status polls.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithMaxPollAttempts sets the status poll budget per execution.
func WithMaxPollAttempts(n int) ClientOption {
	return func(c *Client) {
		c.maxPollAttempts = n
	}
}

// WithPerformance sets the execution performance tier ("medium", "large").
func WithPerformance(tier string) ClientOption {
	return func(c *Client) {
		c.performance = tier
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithMetrics enables API call metrics.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithoutJitter disables retry jitter. Tests use this for determinism.
func WithoutJitter() ClientOption {
	return func(c *Client) {
		c.jitter = func() time.Duration { return 0 }
	}
}

// NewClient creates a Dune API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:         DefaultBaseURL,
		apiKey:          apiKey,
		client:          &http.Client{Timeout: DefaultTimeout},
		maxRetries:      DefaultMaxRetries,
		retryDelay:      DefaultRetryDelay,
		maxDelay:        DefaultMaxDelay,
		backoffMult:     DefaultBackoffMult,
		pollInterval:    DefaultPollInterval,
		maxPollAttempts: DefaultMaxPollAttempts,
		performance:     "medium",
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExecuteQuery starts an execution of a saved query with the given parameters.
func (c *Client) ExecuteQuery(ctx context.Context, queryID int64, params []QueryParameter) (*ExecuteResponse, error) {
	body := executeRequest{
		Performance: c.performance,
		Parameters:  params,
	}

	var resp ExecuteResponse
	path := fmt.Sprintf("/query/%d/execute", queryID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("execute query %d: %w", queryID, err)
	}
	if resp.ExecutionID == "" {
		return nil, fmt.Errorf("execute query %d: no execution id in response", queryID)
	}
	return &resp, nil
}

// ExecutionStatus fetches the current state of an execution.
func (c *Client) ExecutionStatus(ctx context.Context, executionID string) (*StatusResponse, error) {
	var resp StatusResponse
	path := fmt.Sprintf("/execution/%s/status", executionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("status of execution %s: %w", executionID, err)
	}
	return &resp, nil
}

// ExecutionResults fetches the result rows of an execution.
func (c *Client) ExecutionResults(ctx context.Context, executionID string) (*ResultsResponse, error) {
	var resp ResultsResponse
	path := fmt.Sprintf("/execution/%s/results", executionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("results of execution %s: %w", executionID, err)
	}
	return &resp, nil
}

// WaitForCompletion polls the execution until it reaches a terminal state.
func (c *Client) WaitForCompletion(ctx context.Context, executionID string) error {
	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		if c.metrics != nil {
			c.metrics.ExecutionPollsTotal.Inc()
		}
		status, err := c.ExecutionStatus(ctx, executionID)
		if err != nil {
			return err
		}

		switch status.State {
		case StateCompleted:
			if c.metrics != nil {
				c.metrics.ExecutionsTotal.WithLabelValues(status.State).Inc()
			}
			return nil
		case StateFailed, StateCancelled:
			if c.metrics != nil {
				c.metrics.ExecutionsTotal.WithLabelValues(status.State).Inc()
			}
			return fmt.Errorf("%w: execution %s ended in %s", ErrExecutionFailed, executionID, status.State)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return fmt.Errorf("%w: execution %s after %d polls", ErrExecutionTimeout, executionID, c.maxPollAttempts)
}

// RunQuery executes a saved query, waits for completion and returns its results.
func (c *Client) RunQuery(ctx context.Context, queryID int64, params []QueryParameter) (*ResultsResponse, error) {
	exec, err := c.ExecuteQuery(ctx, queryID, params)
	if err != nil {
		return nil, err
	}
	if err := c.WaitForCompletion(ctx, exec.ExecutionID); err != nil {
		return nil, err
	}
	return c.ExecutionResults(ctx, exec.ExecutionID)
}

// doJSON performs one API call with retries and exponential backoff.
// 429 responses honor Retry-After; 5xx and transport errors back off
// geometrically with jitter, capped at maxDelay.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	endpoint := metricEndpoint(path)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.APIRetries.Inc()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay + c.jitter()):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if reqBody != nil {
			reader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set(APIKeyHeader, c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			if c.metrics != nil {
				c.metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}
		if c.metrics != nil {
			c.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
			c.metrics.APICallLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if after := retryAfter(resp); after > 0 && after < c.maxDelay {
				delay = after
			}
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Message: apiMessage(respBody)}
			continue
		case resp.StatusCode >= 500:
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Message: apiMessage(respBody)}
			continue
		case resp.StatusCode >= 400:
			// Client errors don't get better with retries.
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiMessage(respBody)}
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

// metricEndpoint maps an API path to a bounded endpoint label.
func metricEndpoint(path string) string {
	switch {
	case strings.HasSuffix(path, "/execute"):
		return "execute"
	case strings.HasSuffix(path, "/status"):
		return "status"
	case strings.HasSuffix(path, "/results"):
		return "results"
	default:
		return "other"
	}
}

// retryAfter parses the Retry-After header, in seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// apiMessage extracts the error field from an API error body, if any.
func apiMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error
}
