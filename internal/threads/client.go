package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/metrics"
)

// ErrRateLimited matches an APIError whose retry also came back 429
var ErrRateLimited = errors.New("rate limited")

// APIError is returned for a failing status or an error payload in the body
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("threads API error (status %d): %s", e.StatusCode, e.Message)
}

// Is reports ErrRateLimited for 429 responses
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the Threads Graph API
type Client struct {
	baseURL  string
	cfg      config.ThreadsConfig
	http     *http.Client
	executor failsafe.Executor[*response]
	log      logging.Logger
	metrics  *metrics.Metrics

	// sleep pauses between pages and batches; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// response is a fully read HTTP response
type response struct {
	status int
	body   []byte
}

// errorEnvelope is the error payload the API may embed in any response
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NewClient creates a Threads API client.
// A 429 response is retried exactly once after the configured delay.
func NewClient(cfg config.ThreadsConfig, logger logging.Logger, m *metrics.Metrics) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout()},
		log:     logging.Component(logger, "threads"),
		metrics: m,
		sleep:   sleepContext,
	}

	retry := retrypolicy.NewBuilder[*response]().
		HandleIf(func(r *response, err error) bool {
			return err == nil && r != nil && r.status == http.StatusTooManyRequests
		}).
		WithDelay(cfg.RetryDelay()).
		WithMaxRetries(1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*response]) {
			c.metrics.IncRateLimitRetry()
			c.log.WithField("delay", cfg.RetryDelay()).Warn("rate limited, retrying once")
		}).
		Build()
	c.executor = failsafe.With[*response](retry)

	return c
}

// get performs a GET and returns the body of a successful, error-free response
func (c *Client) get(ctx context.Context, kind, rawURL string) ([]byte, error) {
	resp, err := c.executor.WithContext(ctx).Get(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call threads API: %w", err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return &response{status: httpResp.StatusCode, body: body}, nil
	})
	if err != nil {
		c.metrics.IncAPIRequest(kind, "error")
		return nil, err
	}

	if resp.status < 200 || resp.status >= 300 {
		c.metrics.IncAPIRequest(kind, fmt.Sprintf("%d", resp.status))
		msg := embeddedError(resp.body)
		if msg == "" {
			msg = truncate(string(resp.body), 200)
		}
		return nil, &APIError{StatusCode: resp.status, Message: msg}
	}
	if msg := embeddedError(resp.body); msg != "" {
		c.metrics.IncAPIRequest(kind, "error_payload")
		return nil, &APIError{StatusCode: resp.status, Message: msg}
	}

	c.metrics.IncAPIRequest(kind, "ok")
	return resp.body, nil
}

// endpoint builds {base}/{path}?{params}
func (c *Client) endpoint(path string, params url.Values) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + params.Encode()
}

func embeddedError(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return ""
	}
	if env.Error.Message == "" {
		return "unknown error"
	}
	return env.Error.Message
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
