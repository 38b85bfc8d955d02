package dropbox

import (
	"fmt"
	"io"
)

// Endpoint identifies the base URL family a route is served from.
type Endpoint int

const (
	// EndpointAPI serves RPC routes.
	EndpointAPI Endpoint = iota
	// EndpointContent serves upload and download routes.
	EndpointContent
	// EndpointNotify serves long-poll routes.
	EndpointNotify
	// EndpointOAuth2 serves the token endpoint.
	EndpointOAuth2
)

// URL returns the production base URL of the endpoint. Function names are
// appended to it verbatim.
func (e Endpoint) URL() string {
	switch e {
	case EndpointAPI:
		return "https://api.dropboxapi.com/2/"
	case EndpointContent:
		return "https://content.dropboxapi.com/2/"
	case EndpointNotify:
		return "https://notify.dropboxapi.com/2/"
	case EndpointOAuth2:
		return "https://api.dropboxapi.com/"
	default:
		return ""
	}
}

func (e Endpoint) String() string {
	switch e {
	case EndpointAPI:
		return "api"
	case EndpointContent:
		return "content"
	case EndpointNotify:
		return "notify"
	case EndpointOAuth2:
		return "oauth2"
	default:
		return fmt.Sprintf("Endpoint(%d)", int(e))
	}
}

// Style is the request/response shape of a route.
type Style int

const (
	// StyleRPC sends arguments in the body and reads the result from the body.
	StyleRPC Style = iota
	// StyleUpload sends arguments in a header and raw bytes in the body.
	StyleUpload
	// StyleDownload sends arguments in a header and streams the body back,
	// with the result carried in the Dropbox-API-Result response header.
	StyleDownload
)

func (s Style) String() string {
	switch s {
	case StyleRPC:
		return "rpc"
	case StyleUpload:
		return "upload"
	case StyleDownload:
		return "download"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// ParamsType tags the serialization of RPC arguments.
type ParamsType int

const (
	ParamsJSON ParamsType = iota
	ParamsForm
)

// ContentType returns the Content-Type header value for the params type.
func (p ParamsType) ContentType() string {
	switch p {
	case ParamsForm:
		return "application/x-www-form-urlencoded"
	default:
		return "application/json"
	}
}

// Request is the complete description of one API call.
type Request struct {
	Endpoint   Endpoint
	Style      Style
	Function   string
	Params     string
	ParamsType ParamsType
	// Body is only valid for StyleUpload.
	Body       []byte
	RangeStart *uint64
	RangeEnd   *uint64
}

// RawResult is the undecoded outcome of a successful call. Body is non-nil
// only for StyleDownload, in which case the caller must close it.
type RawResult struct {
	ResultJSON    string
	ContentLength *uint64
	Body          io.ReadCloser
}

// Close releases the response body, if any.
func (r *RawResult) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Uint64 returns a pointer to v. Handy for range bounds.
func Uint64(v uint64) *uint64 {
	return &v
}
