package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; a bridge is a single small host
const (
	defaultMaxIdleConns        = 4
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// requestIDHeader carries a per-dispatch correlation ID to the bridge.
const requestIDHeader = "X-Request-ID"

// errBodyTooLarge is returned when a bridge answers with more than 1MB.
var errBodyTooLarge = errors.New("response body exceeds 1MB")

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// RequestID is the correlation ID sent in the X-Request-ID header.
	RequestID string

	// Error contains any transport error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// Fetcher performs one telemetry request. [Client] is the production
// implementation; tests substitute their own.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) Response
	Close() error
}

// Client is a resty-based HTTP client for polling the sensor bridge.
//
// Client uses per-request timeouts via context rather than a global timeout.
// Retries are disabled: a failed poll is retried by the next tick, never
// immediately.
type Client struct {
	rc        *resty.Client
	transport *http.Transport
}

// NewClient creates a new polling [Client].
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}

	rc := resty.NewWithClient(&http.Client{Transport: transport}).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return &Client{rc: rc, transport: transport}
}

// Fetch performs a GET request and returns a structured [Response].
//
// The timeout is applied via context cancellation. Fetch always returns a
// Response; transport errors are captured in the Error field rather than
// returned separately.
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, requestID).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return Response{
			Latency:   time.Since(start),
			RequestID: requestID,
			Error:     fmt.Errorf("request failed: %w", err),
		}
	}

	raw := resp.RawBody()
	defer raw.Close()

	// read one byte past the limit to detect an oversized body without
	// buffering the rest of it
	body, err := io.ReadAll(io.LimitReader(raw, maxResponseBodySize+1))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode(),
			Latency:    time.Since(start),
			RequestID:  requestID,
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}
	if len(body) > maxResponseBodySize {
		return Response{
			StatusCode: resp.StatusCode(),
			Latency:    time.Since(start),
			RequestID:  requestID,
			Error:      errBodyTooLarge,
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode(),
		Latency:    time.Since(start),
		RequestID:  requestID,
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil receiver. After Close, the client
// remains usable but new connections will be established as needed.
func (c *Client) Close() error {
	if c == nil || c.transport == nil {
		return nil
	}
	c.transport.CloseIdleConnections()
	return nil
}
