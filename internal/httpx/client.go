package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used by the helper.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client performs single HTTP exchanges. It never retries: callers that want
// retries build them on top.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	logger     hclog.Logger
}

// Request describes a single outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// NewClient creates a Client. The default http.Client has no overall timeout
// because download bodies are streamed for as long as the caller reads them.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: http.DefaultTransport,
			Timeout:   0,
		},
		headers: make(http.Header),
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns the logger configured for the client.
func (c *Client) Logger() hclog.Logger {
	return c.logger
}

// Do executes the request once. A connection or I/O failure is returned as a
// *TransportError, a non-2xx response as an *HTTPError with its body fully
// read. On success the caller owns resp.Body.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("httpx: URL is required")
	}

	body := req.Body
	if body == nil {
		body = http.NoBody
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("httpx: build request: %w", err)
	}

	httpReq.Header = cloneHeader(c.headers)
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	c.logger.Debug("request", "method", req.Method, "url", req.URL)
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		closeBody(respBody(resp))
		c.logger.Error("request failed", "url", req.URL, "error", err)
		return nil, &TransportError{Op: req.Method + " " + req.URL, Err: err}
	}
	c.logger.Trace("response", "url", req.URL, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.handleError(resp)
	}
	return resp, nil
}

func (c *Client) handleError(resp *http.Response) error {
	defer closeBody(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read error body", Err: err}
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
		Body:       body,
		Header:     resp.Header.Clone(),
	}
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// ReadAllAndClose drains the reader and ensures it is closed.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer closeBody(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}

func respBody(resp *http.Response) io.ReadCloser {
	if resp == nil {
		return nil
	}
	return resp.Body
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}
