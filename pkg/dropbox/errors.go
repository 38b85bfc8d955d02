package dropbox

import (
	"errors"
	"fmt"
)

var (
	// ErrBodyNotAllowed is returned when a body is supplied for a style that
	// cannot carry one.
	ErrBodyNotAllowed = errors.New("dropbox: body can only be set for upload style requests")
	// ErrMissingToken is returned when an authenticated client is built without a token.
	ErrMissingToken = errors.New("dropbox: access token is required")
)

// HTTPClientError wraps a connection or I/O failure of the underlying HTTP
// client. It is never produced for an HTTP response with a status code.
type HTTPClientError struct {
	Err error
}

func (e *HTTPClientError) Error() string {
	return fmt.Sprintf("dropbox: http client error: %v", e.Err)
}

func (e *HTTPClientError) Unwrap() error {
	return e.Err
}

// UnexpectedHTTPError is a non-2xx response. JSON holds the response body
// verbatim; decoding it is left to the caller.
type UnexpectedHTTPError struct {
	Code   int
	Status string
	JSON   string
}

func (e *UnexpectedHTTPError) Error() string {
	return fmt.Sprintf("dropbox: unexpected HTTP status %d %s: %s", e.Code, e.Status, e.JSON)
}

// UnexpectedResponseError reports a 2xx response that breaks the protocol,
// such as a download without a Dropbox-API-Result header.
type UnexpectedResponseError struct {
	Reason string
}

func (e *UnexpectedResponseError) Error() string {
	return "dropbox: unexpected response: " + e.Reason
}

// APIError is a route-specific error decoded from an HTTP 409 response.
type APIError[E any] struct {
	Summary string
	Err     E
	// Raw is the response body as received.
	Raw string
}

func (e *APIError[E]) Error() string {
	if e.Summary != "" {
		return "dropbox: api error: " + e.Summary
	}
	return "dropbox: api error: " + e.Raw
}

// Unwrap exposes the route error when its type implements error.
func (e *APIError[E]) Unwrap() error {
	if err, ok := any(e.Err).(error); ok {
		return err
	}
	return nil
}
