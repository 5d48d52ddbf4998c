// Package qualtrics implements the authenticated request pipeline every
// tool call goes through.
//
// One Client is shared process-wide, bound to a single API token and
// base URL. Each call passes the rate limiter's admission gate, runs
// under a hard deadline, and has its failure translated into one of
// three shapes: *APIError (non-2xx), ErrTimeout (deadline), or a
// wrapped transport error. The pipeline never retries — retry and
// fallback policy belongs to callers such as the export poller, which
// alone know whether an alternate format is appropriate.
package qualtrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/surveykit/qualtrics-mcp/internal/config"
	"github.com/surveykit/qualtrics-mcp/internal/ratelimit"
)

// Client performs authenticated calls against the Qualtrics v3 API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	limiter *ratelimit.Limiter
	log     *zap.Logger

	// HTTPClient is overridable for tests. Defaults to a plain
	// http.Client; per-request deadlines come from context, not the
	// client's Timeout field.
	HTTPClient *http.Client
}

// New creates a Client from validated configuration. The limiter may be
// nil (admission then becomes a no-op), which tests use freely.
func New(cfg *config.Config, limiter *ratelimit.Limiter, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		timeout:    cfg.RequestTimeout,
		limiter:    limiter,
		log:        log,
		HTTPClient: &http.Client{},
	}
}

// BaseURL returns the resolved API root, for the status resource.
func (c *Client) BaseURL() string { return c.baseURL }

// Get performs a GET against a JSON endpoint.
func (c *Client) Get(ctx context.Context, path string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

// Delete performs a DELETE against a JSON endpoint.
func (c *Client) Delete(ctx context.Context, path string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodDelete, path, nil)
}

// GetText performs a GET against a raw download endpoint and returns
// the payload as text (export files are CSV/TSV/JSON text).
func (c *Client) GetText(ctx context.Context, path string) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// doJSON runs a request and decodes the response into a generic map.
// The shape is opaque at this layer: tool handlers interpret it.
func (c *Client) doJSON(ctx context.Context, method, path string, body any) (map[string]any, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return decoded, nil
}

// do is the single request path: rate-limit admission, auth header,
// deadline, and error translation.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(reqCtx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}

	req.Header.Set("X-API-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	reqID := uuid.NewString()
	start := time.Now()

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.Warn("request deadline exceeded",
				zap.String("request_id", reqID),
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("timeout", c.timeout))
			return nil, fmt.Errorf("%s %s after %v: %w", method, path, c.timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s after %v: %w", method, path, c.timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	c.log.Debug("qualtrics request",
		zap.String("request_id", reqID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}
