package dropbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/Ratio1/dropbox_sdk_go/internal/dbxapi"
	"github.com/Ratio1/dropbox_sdk_go/internal/httpx"
)

// Version of the SDK, reported in the User-Agent header.
const Version = "0.3.0"

// UserAgent is sent with every request.
const UserAgent = "Dropbox-APIv2-Go/" + Version

const (
	headerUserAgent     = "User-Agent"
	headerContentType   = "Content-Type"
	headerContentLength = "Content-Length"
	headerRange         = "Range"
	headerArg           = "Dropbox-API-Arg"
	headerResult        = "Dropbox-API-Result"

	contentTypeOctetStream = "application/octet-stream"
)

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient overrides the *http.Client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(t *Transport) {
		t.httpOpts = append(t.httpOpts, httpx.WithHTTPClient(h))
	}
}

// WithLogger sets the logger. Requests are logged at debug level.
func WithLogger(l hclog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithEndpointURL redirects an endpoint to another base URL. The URL should
// end with a slash; one is appended otherwise.
func WithEndpointURL(e Endpoint, baseURL string) Option {
	return func(t *Transport) {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return
		}
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		t.urls[e] = baseURL
	}
}

// Transport performs one HTTP exchange per Dispatch. It holds no per-call
// state and is safe for concurrent use.
type Transport struct {
	http     *httpx.Client
	httpOpts []httpx.Option
	urls     map[Endpoint]string
	logger   hclog.Logger
}

// NewTransport builds a Transport talking to the production endpoints unless
// overridden by options.
func NewTransport(opts ...Option) *Transport {
	t := &Transport{
		urls:   make(map[Endpoint]string),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("dropbox")
	t.http = httpx.NewClient(append(t.httpOpts, httpx.WithLogger(t.logger))...)
	return t
}

// URL returns the base URL used for the endpoint.
func (t *Transport) URL(e Endpoint) string {
	if u, ok := t.urls[e]; ok {
		return u
	}
	return e.URL()
}

// Dispatch sends req with the given authorization. On success the caller owns
// the result; for download style requests the body must be closed.
func (t *Transport) Dispatch(ctx context.Context, req *Request, auth Auth) (*RawResult, error) {
	httpReq, err := t.buildRequest(req, auth)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(ctx, httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	return decodeResponse(req.Style, resp)
}

func (t *Transport) buildRequest(req *Request, auth Auth) (*httpx.Request, error) {
	if req == nil {
		return nil, errors.New("dropbox: request is nil")
	}
	if strings.TrimSpace(req.Function) == "" {
		return nil, errors.New("dropbox: function name is required")
	}
	base := t.URL(req.Endpoint)
	if base == "" {
		return nil, fmt.Errorf("dropbox: unknown endpoint %v", req.Endpoint)
	}

	header := make(http.Header)
	header.Set(headerUserAgent, UserAgent)
	auth.apply(header)
	if value, ok := rangeHeader(req.RangeStart, req.RangeEnd); ok {
		header.Set(headerRange, value)
	}

	argHeader, body, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	for k, values := range argHeader {
		for _, v := range values {
			header.Add(k, v)
		}
	}

	out := &httpx.Request{
		Method: http.MethodPost,
		URL:    base + req.Function,
		Header: header,
	}
	if body != nil {
		out.Body = bytes.NewReader(body)
	}
	return out, nil
}

// encodeBody places the serialized arguments and the raw body according to
// the request style. A nil body means no body is sent at all.
func encodeBody(req *Request) (http.Header, []byte, error) {
	if req.Style == StyleDownload && req.Body != nil {
		return nil, nil, ErrBodyNotAllowed
	}
	header := make(http.Header)
	if req.Params == "" {
		return header, nil, nil
	}

	switch req.Style {
	case StyleRPC:
		header.Set(headerContentType, req.ParamsType.ContentType())
		return header, []byte(req.Params), nil
	case StyleUpload:
		header.Set(headerArg, dbxapi.HeaderSafe(req.Params))
		header.Set(headerContentType, contentTypeOctetStream)
		if req.Body == nil {
			return header, []byte{}, nil
		}
		return header, req.Body, nil
	case StyleDownload:
		header.Set(headerArg, dbxapi.HeaderSafe(req.Params))
		return header, nil, nil
	default:
		return nil, nil, fmt.Errorf("dropbox: unknown style %v", req.Style)
	}
}

func rangeHeader(start, end *uint64) (string, bool) {
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf("bytes=%d-%d", *start, *end), true
	case start != nil:
		return fmt.Sprintf("bytes=%d-", *start), true
	case end != nil:
		return fmt.Sprintf("bytes=-%d", *end), true
	default:
		return "", false
	}
}

func classifyError(err error) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		return &UnexpectedHTTPError{
			Code:   httpErr.StatusCode,
			Status: httpErr.Status,
			JSON:   string(httpErr.Body),
		}
	}
	return &HTTPClientError{Err: err}
}

// decodeResponse turns a 2xx response into a RawResult. The body is closed on
// every path except a successful download, where it is handed to the caller.
func decodeResponse(style Style, resp *http.Response) (*RawResult, error) {
	switch style {
	case StyleRPC, StyleUpload:
		data, err := httpx.ReadAllAndClose(resp.Body)
		if err != nil {
			return nil, &HTTPClientError{Err: err}
		}
		return &RawResult{ResultJSON: string(data)}, nil
	case StyleDownload:
		result, ok := headerValue(resp.Header, headerResult)
		if !ok {
			resp.Body.Close()
			return nil, &UnexpectedResponseError{Reason: "missing Dropbox-API-Result header"}
		}
		var contentLength *uint64
		if raw, ok := headerValue(resp.Header, headerContentLength); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				resp.Body.Close()
				return nil, &UnexpectedResponseError{Reason: "invalid Content-Length header"}
			}
			contentLength = &n
		}
		return &RawResult{
			ResultJSON:    result,
			ContentLength: contentLength,
			Body:          resp.Body,
		}, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("dropbox: unknown style %v", style)
	}
}

func headerValue(h http.Header, name string) (string, bool) {
	values, ok := h[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
