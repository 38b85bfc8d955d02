package dropbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Ratio1/dropbox_sdk_go/internal/dbxapi"
)

// DownloadResult is the decoded result of a download style route together
// with the streamed content. The caller must close Body.
type DownloadResult[T any] struct {
	Result        T
	ContentLength *uint64
	Body          io.ReadCloser
}

// Close releases the content stream.
func (r *DownloadResult[T]) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Call invokes an RPC route. Route errors come back as *APIError[E].
func Call[T any, E any](ctx context.Context, c Client, endpoint Endpoint, function string, arg any) (*T, error) {
	raw, err := send[E](ctx, c, endpoint, StyleRPC, function, arg, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeResult[T](function, raw.ResultJSON)
}

// CallUpload invokes an upload route with body as the content.
func CallUpload[T any, E any](ctx context.Context, c Client, endpoint Endpoint, function string, arg any, body []byte) (*T, error) {
	if body == nil {
		body = []byte{}
	}
	raw, err := send[E](ctx, c, endpoint, StyleUpload, function, arg, body, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeResult[T](function, raw.ResultJSON)
}

// CallDownload invokes a download route, optionally restricted to a byte range.
func CallDownload[T any, E any](ctx context.Context, c Client, endpoint Endpoint, function string, arg any, rangeStart, rangeEnd *uint64) (*DownloadResult[T], error) {
	raw, err := send[E](ctx, c, endpoint, StyleDownload, function, arg, nil, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	result, err := decodeResult[T](function, raw.ResultJSON)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &DownloadResult[T]{
		Result:        *result,
		ContentLength: raw.ContentLength,
		Body:          raw.Body,
	}, nil
}

func send[E any](ctx context.Context, c Client, endpoint Endpoint, style Style, function string, arg any, body []byte, rangeStart, rangeEnd *uint64) (*RawResult, error) {
	if c == nil {
		return nil, errors.New("dropbox: client is nil")
	}
	params, err := dbxapi.EncodeArg(arg)
	if err != nil {
		return nil, fmt.Errorf("dropbox: encode %s argument: %w", function, err)
	}
	raw, err := c.Request(ctx, &Request{
		Endpoint:   endpoint,
		Style:      style,
		Function:   function,
		Params:     params,
		ParamsType: ParamsJSON,
		Body:       body,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
	})
	if err != nil {
		return nil, routeError[E](err)
	}
	return raw, nil
}

// routeError decodes HTTP 409 bodies into the route error type. Other errors,
// and 409 bodies that do not decode, are returned unchanged.
func routeError[E any](err error) error {
	var httpErr *UnexpectedHTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusConflict {
		return err
	}
	var routeErr E
	summary, decodeErr := dbxapi.DecodeError([]byte(httpErr.JSON), &routeErr)
	if decodeErr != nil {
		return err
	}
	return &APIError[E]{Summary: summary, Err: routeErr, Raw: httpErr.JSON}
}

func decodeResult[T any](function, resultJSON string) (*T, error) {
	var out T
	if err := dbxapi.DecodeResult([]byte(resultJSON), &out); err != nil {
		return nil, fmt.Errorf("dropbox: decode %s result: %w", function, err)
	}
	return &out, nil
}
