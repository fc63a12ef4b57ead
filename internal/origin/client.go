// Package origin fetches the current schema document from the documentation
// origin. Requests are unauthenticated.
package origin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/document"
	"github.com/kalambet/ctxsync/internal/transport"
)

// DefaultPath is the well-known document endpoint.
const DefaultPath = "/api/openapi.json"

// Client reads documents from the documentation origin.
type Client struct {
	path   string
	http   *transport.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = transport.New(hc) }
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client that fetches path from each environment's base URL.
// An empty path means DefaultPath. The client sets no timeout of its own.
func New(path string, opts ...Option) *Client {
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	c := &Client{
		path:   path,
		http:   transport.New(&http.Client{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the document endpoint for env.
func (c *Client) URL(env config.Environment) string {
	return env.BaseURL + c.path
}

// Fetch downloads and parses the document. Every failure is logged with its
// kind and returned; callers that only care whether a document arrived can
// treat any error as "no document".
func (c *Client) Fetch(ctx context.Context, env config.Environment) (*document.Document, error) {
	url := c.URL(env)
	log := c.logger.With("environment", env.Name, "url", url)

	resp, err := c.http.Do(ctx, "fetch document", http.MethodGet, url, nil)
	if err != nil {
		logFailure(log, err)
		return nil, err
	}
	status := resp.StatusCode

	var doc *document.Document
	err = transport.Decode("fetch document", resp, func(r io.Reader) error {
		var derr error
		doc, derr = document.Decode(r)
		return derr
	})
	if err != nil {
		log.Warn("origin returned a malformed document", "status", status, "kind", transport.Classify(err).String(), "error", err)
		return nil, err
	}

	log.Info("fetched document",
		"status", status,
		"paths", doc.PathCount(),
		"top_level_entries", doc.TopLevelCount(),
	)
	return doc, nil
}

func logFailure(log *slog.Logger, err error) {
	kind := transport.Classify(err)
	if code := transport.StatusCode(err); code != 0 {
		log.Warn("origin responded with an error status", "status", code, "kind", kind.String())
		return
	}
	log.Warn("origin request failed", "kind", kind.String(), "error", err)
}
