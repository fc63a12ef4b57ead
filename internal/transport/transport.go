// Package transport sends JSON requests to the platform services and sorts
// failures into transport, protocol and decode errors so callers can log them
// distinctly while treating them the same way.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Kind classifies a request failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindProtocol
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned for every failed request. StatusCode and Body are only
// set for protocol failures.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProtocol:
		if e.Body == "" {
			return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
		}
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	case KindDecode:
		return fmt.Sprintf("%s: decoding response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Classify returns the Kind of err, or KindUnknown when err did not come
// from this package.
func Classify(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// StatusCode returns the HTTP status carried by a protocol failure, or 0.
func StatusCode(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

type requestIDKey struct{}

// WithRequestID attaches an id that is sent as X-Request-ID on every request
// made with the returned context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Client performs JSON requests over an http.Client.
type Client struct {
	httpClient *http.Client
}

// New wraps httpClient. A nil client means http.DefaultClient.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Do sends the request and returns the response when the status is 2xx.
// The caller must close the response body. Any other status is drained into
// a KindProtocol error.
func (c *Client) Do(ctx context.Context, op, method, url string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshalling request: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Kind:       KindProtocol,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(data)),
		}
	}
	return resp, nil
}

// DecodeJSON decodes a successful response into v and closes the body.
func DecodeJSON(op string, resp *http.Response, v any) error {
	return Decode(op, resp, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(v)
	})
}

// Decode hands the response body to fn and closes it. Errors from fn are
// reported as KindDecode.
func Decode(op string, resp *http.Response, fn func(io.Reader) error) error {
	defer resp.Body.Close()
	if err := fn(resp.Body); err != nil {
		return &Error{Kind: KindDecode, Op: op, Err: err}
	}
	return nil
}
