package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/httpx"
	"rider-tracking-service/internal/platform/metrics"
)


// Client implements ports.OrderAPI over the order-management HTTP API.
//
// Every response is normalized into domain.Order before it leaves this
// package. The client is safe for concurrent use.
type Client struct {
	http     *httpx.Client
	httpOpts []httpx.Option
	baseURL  string
	tracer   trace.Tracer
	log      zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, httpx.WithHTTPClient(hc)) }
}

// WithRetry configures read retries. attempts < 1 disables retrying.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, httpx.WithRetry(attempts, backoff)) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("order api base url is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("order api base url: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		tracer:  otel.Tracer("rider-tracking-service/orderapi"),
		log:     zerolog.Nop(),
	}
	if token != "" {
		c.httpOpts = append(c.httpOpts, httpx.WithHeader("Authorization", "Bearer "+token))
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = httpx.New(c.httpOpts...)

	return c, nil
}

// ListOrders fetches the rider's orders filtered by status.
func (c *Client) ListOrders(
	ctx context.Context,
	riderID string,
	statuses []domain.Status,
) (_ []domain.Order, err error) {
	ctx, done := c.start(ctx, "ListOrders", attribute.String("rider.id", riderID))
	defer func() { done(err) }()

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	q := url.Values{}
	q.Set("rider_id", riderID)
	q.Set("status", strings.Join(names, ","))
	endpoint := c.baseURL + "/orders?" + q.Encode()

	resp, err := c.http.DoWithRetry(ctx, "list orders", func() (*http.Request, error) {
		return c.http.NewRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded listOrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode orders response: %w", err)
	}

	orders := make([]domain.Order, 0, len(decoded.Orders))
	for _, w := range decoded.Orders {
		o, err := normalizeOrder(w)
		if err != nil {
			c.log.Warn().Err(err).Str("rider_id", riderID).Msg("skipping malformed order")
			continue
		}
		orders = append(orders, o)
	}

	return orders, nil
}

func (c *Client) StartDelivery(ctx context.Context, orderID string) (_ string, err error) {
	ctx, done := c.start(ctx, "StartDelivery", attribute.String("order.id", orderID))
	defer func() { done(err) }()

	endpoint := fmt.Sprintf("%s/orders/%s/start-delivery", c.baseURL, url.PathEscape(orderID))
	return c.send(ctx, "start delivery", http.MethodPost, endpoint, nil)
}

func (c *Client) CancelDelivery(ctx context.Context, orderID string, reason domain.CancelReason) (_ string, err error) {
	ctx, done := c.start(ctx, "CancelDelivery",
		attribute.String("order.id", orderID),
		attribute.String("cancel.reason", string(reason)),
	)
	defer func() { done(err) }()

	endpoint := fmt.Sprintf("%s/orders/%s/cancel-delivery", c.baseURL, url.PathEscape(orderID))
	return c.send(ctx, "cancel delivery", http.MethodPost, endpoint, map[string]string{"reason": string(reason)})
}

func (c *Client) UpdateStatus(ctx context.Context, orderID string, status domain.Status) (_ string, err error) {
	ctx, done := c.start(ctx, "UpdateStatus",
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	)
	defer func() { done(err) }()

	endpoint := fmt.Sprintf("%s/orders/status/%s", c.baseURL, url.PathEscape(orderID))
	return c.send(ctx, "update status", http.MethodPut, endpoint, map[string]string{"status": string(status)})
}

func (c *Client) ReportLocation(ctx context.Context, orderID string, fix domain.Fix) (err error) {
	ctx, done := c.start(ctx, "ReportLocation", attribute.String("order.id", orderID))
	defer func() { done(err) }()

	endpoint := fmt.Sprintf("%s/orders/%s/location", c.baseURL, url.PathEscape(orderID))
	body := map[string]float64{"latitude": fix.Lat, "longitude": fix.Lng}
	_, err = c.send(ctx, "report location", http.MethodPost, endpoint, body)
	return err
}

// send performs a single, non-retried write and returns the server message.
func (c *Client) send(ctx context.Context, op, method, endpoint string, payload any) (string, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("%s: marshal body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.http.NewRequest(ctx, method, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(op, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var m messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		// A 2xx without a JSON body still counts as success.
		return "", nil
	}
	return strings.TrimSpace(m.Message), nil
}

// start opens a client span and returns a func that records the outcome.
func (c *Client) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	ctx, span := c.tracer.Start(ctx, "orderapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		metrics.OrderAPIDuration.WithLabelValues(op).Observe(time.Since(begin).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
