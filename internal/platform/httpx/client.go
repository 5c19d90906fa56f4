// Package httpx is the outbound JSON HTTP client shared by the adapters.
//
// Transport failures surface as *domain.NetworkError and non-2xx responses as
// *domain.ServerError, so callers can show the server's message to the rider.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"rider-tracking-service/internal/domain"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 200 * time.Millisecond

	maxErrorBody = 4 << 10
)

// MessageFunc turns an error response body into the text carried by ServerError.
type MessageFunc func(code int, body []byte) string

type Client struct {
	session     *http.Client
	maxAttempts int
	backoff     time.Duration
	header      http.Header
	message     MessageFunc
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.session = hc }
}

// WithRetry configures DoWithRetry. attempts < 1 disables retrying.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.maxAttempts = attempts
		c.backoff = backoff
	}
}

// WithHeader sets a header on every request built by NewRequest.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

func WithErrorMessage(fn MessageFunc) Option {
	return func(c *Client) { c.message = fn }
}

func New(opts ...Option) *Client {
	c := &Client{
		session:     &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		header:      http.Header{"Accept": []string{"application/json"}},
		message:     ErrorMessage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) NewRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range c.header {
		req.Header[k] = append([]string(nil), v...)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// Do sends req once.
func (c *Client) Do(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.ServerError{
			StatusCode: resp.StatusCode,
			Message:    c.message(resp.StatusCode, b),
		}
	}
	return resp, nil
}

// DoWithRetry retries transient failures (network errors, 429 and 5xx
// responses) using exponential backoff while respecting context cancellation.
// Only idempotent requests go through here.
func (c *Client) DoWithRetry(
	ctx context.Context,
	op string,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := c.backoff

	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.NetworkError{Op: op, Err: err}
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.Do(op, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == c.maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &domain.NetworkError{Op: op, Err: ctx.Err()}
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	var se *domain.ServerError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var ne *domain.NetworkError
	if errors.As(err, &ne) {
		if errors.Is(ne.Err, context.Canceled) {
			return false
		}
		var netErr net.Error
		return errors.As(ne.Err, &netErr) || errors.Is(ne.Err, io.ErrUnexpectedEOF) || errors.Is(ne.Err, io.EOF)
	}

	return false
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ErrorMessage extracts {message} (or {error}) from an error body, falling
// back to the raw body and finally the status text.
func ErrorMessage(code int, body []byte) string {
	var m messageBody
	if err := json.Unmarshal(body, &m); err == nil {
		if msg := strings.TrimSpace(m.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(m.Error); msg != "" {
			return msg
		}
	}

	if raw := strings.TrimSpace(string(body)); raw != "" && !strings.HasPrefix(raw, "{") {
		return raw
	}

	return http.StatusText(code)
}
