// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (qualtrics://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/surveykit/qualtrics-mcp/internal/config"
	"github.com/surveykit/qualtrics-mcp/internal/ratelimit"
)

// Handler manages the server status resource.
type Handler struct {
	cfg     config.Config
	limiter *ratelimit.Limiter
	version string
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(cfg config.Config, limiter *ratelimit.Limiter, version string) *Handler {
	return &Handler{cfg: cfg, limiter: limiter, version: version}
}

// StatusResource returns the MCP resource definition for server status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"qualtrics://server/status",
		"Qualtrics Server Status",
		mcp.WithResourceDescription("Server version, target data center, and rate-limiter state"),
		mcp.WithMIMEType("application/json"),
	)
}

// status is the resource payload. The API token is deliberately not
// part of it.
type status struct {
	Version          string `json:"version"`
	BaseURL          string `json:"baseUrl"`
	DataCenter       string `json:"dataCenter,omitempty"`
	RequestTimeoutMS int64  `json:"requestTimeoutMs"`
	DownloadDir      string `json:"downloadDir"`

	RateLimit ratelimit.Snapshot `json:"rateLimit"`
}

// HandleStatus returns the current server status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s := status{
		Version:          h.version,
		BaseURL:          h.cfg.BaseURL,
		DataCenter:       h.cfg.DataCenter,
		RequestTimeoutMS: h.cfg.RequestTimeout.Milliseconds(),
		DownloadDir:      h.cfg.DownloadDir,
		RateLimit:        h.limiter.Snapshot(),
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
