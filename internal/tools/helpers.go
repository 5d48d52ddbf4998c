// Package tools implements the MCP tool handlers that expose the
// Qualtrics API to the AI assistant.
//
// Each tool follows the same pattern:
// - A struct with dependencies (the request pipeline, the export
//   poller, the artifact store) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() validates arguments, calls the pipeline, renders markdown
//
// Handlers never retry: transport and API failures are surfaced
// verbatim with one contextual hint line so the assistant can relay
// actionable diagnostics.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/surveykit/qualtrics-mcp/internal/export"
	"github.com/surveykit/qualtrics-mcp/internal/files"
	"github.com/surveykit/qualtrics-mcp/internal/qualtrics"
)

// api is the slice of the request pipeline the read tools use.
type api interface {
	Get(ctx context.Context, path string) (map[string]any, error)
	Post(ctx context.Context, path string, body any) (map[string]any, error)
	Delete(ctx context.Context, path string) (map[string]any, error)
	GetText(ctx context.Context, path string) (string, error)
}

// exporter is the slice of the export poller the response tools use.
type exporter interface {
	Run(ctx context.Context, req export.Request) export.Result
	CheckProgress(ctx context.Context, surveyID, progressID string) (export.Progress, error)
	Download(ctx context.Context, surveyID, fileID string) (string, error)
}

// artifactStore persists export payloads too large to inline.
type artifactStore interface {
	Save(surveyID, format, content string, auto bool) (files.SaveResult, error)
}

// requireString extracts a required string argument, trimmed.
func requireString(req mcp.CallToolRequest, key string) (string, bool) {
	v := strings.TrimSpace(req.GetString(key, ""))
	return v, v != ""
}

// csvList splits a comma-separated argument into trimmed entries.
func csvList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// writeJSON renders v as an indented fenced JSON block.
func writeJSON(sb *strings.Builder, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		sb.WriteString(fmt.Sprintf("(unrenderable value: %v)\n", err))
		return
	}
	sb.WriteString("```json\n")
	sb.Write(data)
	sb.WriteString("\n```\n")
}

// toolError renders a failed pipeline call as a tool error: the
// underlying message verbatim, plus one hint line.
func toolError(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v\n\nHint: %s", action, err, errorHint(err)))
}

// errorHint maps the pipeline's error taxonomy to an actionable hint.
func errorHint(err error) string {
	var apiErr *qualtrics.APIError
	switch {
	case qualtrics.IsTimeout(err):
		return "The request hit its deadline. Raise QUALTRICS_REQUEST_TIMEOUT_MS or retry."
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case 401, 403:
			return "Check QUALTRICS_API_TOKEN and its API permissions."
		case 404:
			return "Check the id — Qualtrics ids are case-sensitive (e.g. SV_..., ES_...)."
		case 429:
			return "Upstream rate limit hit. Lower QUALTRICS_REQUESTS_PER_MINUTE."
		default:
			return "The API rejected the request; the response body above has the details."
		}
	default:
		return "Network-level failure — check QUALTRICS_DATA_CENTER / QUALTRICS_BASE_URL and connectivity."
	}
}

// resultMap extracts the "result" object from a decoded API response.
func resultMap(resp map[string]any) map[string]any {
	m, _ := resp["result"].(map[string]any)
	return m
}

// elements extracts result.elements as a slice from a list response.
func elements(resp map[string]any) []any {
	result := resultMap(resp)
	if result == nil {
		return nil
	}
	el, _ := result["elements"].([]any)
	return el
}

// stringField reads a string key from a generic JSON object.
func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
