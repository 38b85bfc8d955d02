package dbxapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoErrorField reports an error body without the "error" member.
var ErrNoErrorField = errors.New("dbxapi: error body has no error field")

// ExtractError unwraps a route error response. Dropbox answers route failures
// with HTTP 409 and a body shaped like
//
//	{"error_summary": "path/not_found/..", "error": {".tag": "path", ...}}
//
// ExtractError returns the summary and the raw JSON stored under "error".
func ExtractError(body []byte) (summary string, payload []byte, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil, ErrNoErrorField
	}

	var envelope struct {
		Summary string          `json:"error_summary"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return "", nil, fmt.Errorf("dbxapi: decode error envelope: %w", err)
	}
	if envelope.Error == nil || bytes.Equal(envelope.Error, []byte("null")) {
		return envelope.Summary, nil, ErrNoErrorField
	}
	return envelope.Summary, append([]byte(nil), envelope.Error...), nil
}

// DecodeError decodes the "error" member of a route error body into out and
// returns the error summary.
func DecodeError(body []byte, out any) (string, error) {
	summary, payload, err := ExtractError(body)
	if err != nil {
		return summary, err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return summary, fmt.Errorf("dbxapi: decode error payload: %w", err)
	}
	return summary, nil
}

// DecodeResult decodes a result document into out. An empty document is
// treated as JSON null.
func DecodeResult(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	return json.Unmarshal(trimmed, out)
}

// EncodeArg serializes a route argument. A nil argument encodes to the empty
// string, which tells the transport to send neither a body nor an arg header.
func EncodeArg(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	return string(data), nil
}

// HeaderSafe escapes every non-ASCII rune of a JSON document as \uXXXX, with
// surrogate pairs above U+FFFF, so it can travel in an HTTP header. Non-ASCII
// runes only occur inside JSON strings, so the result decodes to the same
// value.
func HeaderSafe(doc string) string {
	i := 0
	for i < len(doc) && doc[i] < utf8.RuneSelf {
		i++
	}
	if i == len(doc) {
		return doc
	}
	var b strings.Builder
	b.Grow(len(doc) + 16)
	b.WriteString(doc[:i])
	for _, r := range doc[i:] {
		switch {
		case r < utf8.RuneSelf:
			b.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&b, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String()
}
