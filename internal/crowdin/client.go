// Package crowdin is a typed client for the Crowdin API v2, covering the
// storage, file, directory, translation and build endpoints the sync
// engine needs. Transient failures (5xx, 429, timeouts) retry with
// exponential backoff; permanent failures surface as *APIError.
package crowdin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openlocale/openlocale/internal/logging"
)

// APIError is a non-2xx response from the Crowdin API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crowdin api error (status %d): %s", e.Status, e.Message)
}

// Transient reports whether the error is worth retrying.
func (e *APIError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Options configures the client.
type Options struct {
	BaseURL   string
	Token     string
	ProjectID int64
	// ServerID prefixes the remote directory tree when no per-namespace
	// override applies. Empty means namespaces live at the tree root.
	ServerID string
	// DirectoryOverrides maps a namespace to a custom parent directory.
	DirectoryOverrides map[string]string
	Timeout            time.Duration
	MaxRetries         int
}

// Client is an HTTP client wrapper for the Crowdin API.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *logging.Logger

	// backoffBase is the first retry delay; doubled per attempt.
	backoffBase time.Duration
	// pollInterval paces build-status polling.
	pollInterval time.Duration
}

// NewClient creates a Crowdin client with tuned connection pooling.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		logger:       logging.GetLogger("crowdin.client"),
		backoffBase:  500 * time.Millisecond,
		pollInterval: 2 * time.Second,
	}
}

// ProjectID returns the configured project id.
func (c *Client) ProjectID() int64 { return c.opts.ProjectID }

// DirSegments resolves the remote directory path for a namespace. The
// file itself always lives in a directory named after the namespace; a
// per-namespace override or the server id becomes the parent directory.
// An explicit empty override pins the namespace to the tree root even
// when a server id is configured.
func (c *Client) DirSegments(ns string) []string {
	if override, ok := c.opts.DirectoryOverrides[ns]; ok {
		if override == "" {
			return []string{ns}
		}
		return []string{override, ns}
	}
	if c.opts.ServerID != "" {
		return []string{c.opts.ServerID, ns}
	}
	return []string{ns}
}

// FilePath returns the absolute remote path of the namespace file.
func (c *Client) FilePath(ns string) string {
	return "/" + strings.Join(append(c.DirSegments(ns), ns+".yml"), "/")
}

func (c *Client) baseURL() string {
	return strings.TrimSuffix(c.opts.BaseURL, "/")
}

func (c *Client) projectURL(suffix string) string {
	return fmt.Sprintf("%s/api/v2/projects/%d%s", c.baseURL(), c.opts.ProjectID, suffix)
}

// doJSON issues a request with a JSON body (nil for none) and decodes the
// response into out (nil to discard). Transient failures retry.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}
	return c.withRetries(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.execute(req, out)
	})
}

// doRaw issues a request with a raw body and extra headers.
func (c *Client) doRaw(ctx context.Context, method, url string, body []byte, headers map[string]string, out any) error {
	return c.withRetries(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return c.execute(req, out)
	})
}

func (c *Client) execute(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are treated as transient.
		return &APIError{Status: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	// Read to completion so the connection can be reused.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: apiMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) withRetries(ctx context.Context, attempt func() error) error {
	var lastErr error
	for try := 0; try <= c.opts.MaxRetries; try++ {
		if try > 0 {
			delay := c.backoffBase << (try - 1)
			c.logger.Warn("retrying crowdin request in %s (attempt %d/%d): %v",
				delay, try, c.opts.MaxRetries, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		apiErr, ok := lastErr.(*APIError)
		if !ok || !apiErr.Transient() {
			return lastErr
		}
	}
	return lastErr
}

// apiMessage digs the human-readable message out of an error payload,
// falling back to the raw body.
func apiMessage(body []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Errors []struct {
			Error struct {
				Errors []struct {
					Message string `json:"message"`
				} `json:"errors"`
			} `json:"error"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Error.Message != "" {
			return wrapped.Error.Message
		}
		for _, outer := range wrapped.Errors {
			for _, inner := range outer.Error.Errors {
				if inner.Message != "" {
					return inner.Message
				}
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// TestConnection fetches project metadata to validate credentials.
func (c *Client) TestConnection(ctx context.Context) (*Project, error) {
	var envelope dataEnvelope[Project]
	if err := c.doJSON(ctx, http.MethodGet, c.projectURL(""), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}
