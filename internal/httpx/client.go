// Package httpx wraps net/http with the request discipline the streaming
// service APIs expect: bearer authentication, client-side rate limiting,
// bounded retries with backoff, and cursor pagination.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/time/rate"
)

// TokenFunc supplies the bearer token for a request. It is called once per
// attempt, so a token refreshed between retries is picked up automatically.
type TokenFunc func(ctx context.Context) (string, error)

// Response is a fully-read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Client issues authenticated JSON requests against one service's API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      TokenFunc
	policy     RetryPolicy
	logger     *log.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRateLimit caps outgoing requests at rps requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(cl *Client) { cl.policy = p }
}

// WithSleep overrides the backoff sleep (tests use an instant sleep).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(cl *Client) { cl.sleep = sleep }
}

// NewClient creates a Client. token may be nil for unauthenticated endpoints.
func NewClient(token TokenFunc, logger *log.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &Client{
		httpClient: http.DefaultClient,
		token:      token,
		policy:     DefaultRetryPolicy(),
		logger:     logger,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request to url.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Post issues a POST request with a JSON body. body may be nil.
func (c *Client) Post(ctx context.Context, url string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

// Delete issues a DELETE request with an optional JSON body.
func (c *Client) Delete(ctx context.Context, url string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, url, body)
}

// Do issues a request, retrying retryable failures per the client's policy.
// Responses with status >= 400 return a [*StatusError]; a 429 that survives
// all retries additionally matches [shared.ErrRateLimited].
func (c *Client) Do(ctx context.Context, method, url string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = data
	}

	var (
		resp             *Response
		transportRetries int
	)

	attempts := c.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var err error
		resp, err = c.attempt(ctx, method, url, payload)
		if err != nil {
			// A transport failure on the last allowed attempt ends the
			// request even when the transport budget has headroom.
			if transportRetries >= c.policy.TransportRetries || attempt+1 == attempts {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			transportRetries++
			c.logger.Debug("retrying after transport error", "url", url, "error", err)
			if serr := c.sleep(ctx, c.policy.backoff(attempt)); serr != nil {
				return nil, serr
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) || attempt+1 == attempts {
			break
		}

		delay := c.policy.retryDelay(attempt, resp.Header)
		c.logger.Warn("retrying request", "url", url, "status", resp.StatusCode, "delay", delay, "attempt", attempt+1)
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}

	if resp.StatusCode >= 400 {
		serr := &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
		if resp.StatusCode == http.StatusTooManyRequests {
			return resp, fmt.Errorf("%w: %v", shared.ErrRateLimited, serr)
		}
		return resp, serr
	}

	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
