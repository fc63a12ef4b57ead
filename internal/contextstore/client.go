// Package contextstore talks to the bearer-authenticated context store that
// holds indexed documents.
package contextstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kalambet/ctxsync/internal/config"
	"github.com/kalambet/ctxsync/internal/document"
	"github.com/kalambet/ctxsync/internal/transport"
)

const (
	// DefaultUploadTimeout bounds Add. No other call has a deadline.
	DefaultUploadTimeout = 30 * time.Second

	DefaultFileName = "openapi.json"
	DefaultScope    = "external"
	fileType        = "application/json"

	// lastModifiedLayout is ISO-8601 in UTC with millisecond precision.
	lastModifiedLayout = "2006-01-02T15:04:05.000Z"
)

var (
	// ErrMissingAPIKey is returned by New when no credential is supplied.
	ErrMissingAPIKey = errors.New("context store API key is required")

	// ErrEmptyDocument is returned by Add for a nil or empty document. No
	// request is made.
	ErrEmptyDocument = errors.New("document is empty")
)

// Client communicates with the context store.
type Client struct {
	http          *transport.Client
	logger        *slog.Logger
	fileName      string
	scope         string
	uploadTimeout time.Duration
	now           func() time.Time
}

type options struct {
	base          *http.Client
	logger        *slog.Logger
	fileName      string
	scope         string
	uploadTimeout time.Duration
	now           func() time.Time
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the client whose transport carries authenticated
// requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.base = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFileName sets the logical file name sent with uploads.
func WithFileName(name string) Option {
	return func(o *options) { o.fileName = name }
}

// WithScope sets the visibility scope tag sent with uploads.
func WithScope(scope string) Option {
	return func(o *options) { o.scope = scope }
}

// WithUploadTimeout overrides DefaultUploadTimeout.
func WithUploadTimeout(d time.Duration) Option {
	return func(o *options) { o.uploadTimeout = d }
}

// WithClock sets the time source for lastModified.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Client that sends apiKey as a bearer token on every request.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	o := options{
		base:          &http.Client{},
		logger:        slog.Default(),
		fileName:      DefaultFileName,
		scope:         DefaultScope,
		uploadTimeout: DefaultUploadTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.uploadTimeout <= 0 {
		o.uploadTimeout = DefaultUploadTimeout
	}
	if o.base == nil {
		o.base = &http.Client{}
	}

	authed := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey}),
			Base:   o.base.Transport,
		},
		Timeout: o.base.Timeout,
	}

	return &Client{
		http:          transport.New(authed),
		logger:        o.logger,
		fileName:      o.fileName,
		scope:         o.scope,
		uploadTimeout: o.uploadTimeout,
		now:           o.now,
	}, nil
}

// FileName returns the logical file name this client uploads under.
func (c *Client) FileName() string {
	return c.fileName
}

// List returns every registration in the store.
func (c *Client) List(ctx context.Context, env config.Environment) ([]Registration, error) {
	url := env.StoreURL + listPath
	log := c.logger.With("environment", env.Name, "url", url)

	resp, err := c.http.Do(ctx, "list documents", http.MethodGet, url, nil)
	if err != nil {
		logFailure(log, "list documents failed", err)
		return nil, err
	}

	var list ListResponse
	if err := transport.DecodeJSON("list documents", resp, &list); err != nil {
		logFailure(log, "list documents failed", err)
		return nil, err
	}
	if list.Documents == nil {
		return []Registration{}, nil
	}
	return list.Documents, nil
}

// Exists reports whether any registration ID contains fragment, ignoring
// case. A substring match is intended: "docs/OpenAPI.JSON" counts as a match
// for "openapi.json".
func (c *Client) Exists(ctx context.Context, env config.Environment, fragment string) (bool, error) {
	if fragment == "" {
		return false, fmt.Errorf("exists: empty name fragment")
	}

	docs, err := c.List(ctx, env)
	if err != nil {
		return false, err
	}

	needle := strings.ToLower(fragment)
	var matches []string
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.ID), needle) {
			matches = append(matches, d.ID)
		}
	}

	c.logger.Debug("checked existing registrations",
		"environment", env.Name,
		"fragment", fragment,
		"registered", len(docs),
		"matches", len(matches),
	)
	return len(matches) > 0, nil
}

// DeleteBySource removes every registration whose source document is
// source. The decoded response body is returned as-is.
func (c *Client) DeleteBySource(ctx context.Context, env config.Environment, source string) (any, error) {
	url := env.StoreURL + deletePath
	log := c.logger.With("environment", env.Name, "url", url)
	req := DeleteRequest{Source: source, ByDoc: true, ByID: false}

	log.Info("deleting existing context", "source", source)

	resp, err := c.http.Do(ctx, "delete context", http.MethodPost, url, req)
	if err != nil {
		logFailure(log, "delete context failed", err)
		return nil, err
	}

	var out any
	if err := transport.DecodeJSON("delete context", resp, &out); err != nil {
		logFailure(log, "delete context failed", err)
		return nil, err
	}
	return out, nil
}

// Add uploads doc as a new registration. It reports true only for a 2xx
// response; a timeout, transport failure or error status yields false with
// the cause. The request is abandoned after the upload timeout.
func (c *Client) Add(ctx context.Context, env config.Environment, doc *document.Document) (bool, error) {
	if doc.Empty() {
		return false, ErrEmptyDocument
	}

	content, err := doc.Serialize()
	if err != nil {
		return false, err
	}

	req := AddRequest{
		FileName:     c.fileName,
		FileType:     fileType,
		FileSize:     document.DeclaredSize(content),
		LastModified: c.now().UTC().Format(lastModifiedLayout),
		Content:      content,
		Scope:        c.scope,
	}

	url := env.StoreURL + addPath
	log := c.logger.With("environment", env.Name, "url", url)
	log.Info("uploading context", "file_name", req.FileName, "declared_size", req.FileSize, "scope", req.Scope)

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	resp, err := c.http.Do(ctx, "add context", http.MethodPost, url, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("upload timed out", "timeout", c.uploadTimeout)
		} else {
			logFailure(log, "upload failed", err)
		}
		return false, err
	}
	resp.Body.Close()

	log.Info("uploaded context", "status", resp.StatusCode)
	return true, nil
}

func logFailure(log *slog.Logger, msg string, err error) {
	attrs := []any{"kind", transport.Classify(err).String(), "error", err}
	if code := transport.StatusCode(err); code != 0 {
		attrs = append(attrs, "status", code)
	}
	log.Warn(msg, attrs...)
}
