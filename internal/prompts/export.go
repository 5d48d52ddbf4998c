// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExportPrompt handles the qualtrics-export MCP prompt.
// It guides the AI through the full response-export workflow.
type ExportPrompt struct{}

// NewExportPrompt creates an ExportPrompt.
func NewExportPrompt() *ExportPrompt {
	return &ExportPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ExportPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("qualtrics-export",
		mcp.WithPromptDescription(
			"Export survey responses end to end: find the survey, start "+
				"the export, wait for it, and summarize the data.",
		),
		mcp.WithArgument("survey",
			mcp.ArgumentDescription("Survey name or id to export (if omitted, the surveys will be listed first)"),
		),
		mcp.WithArgument("format",
			mcp.ArgumentDescription("Export format: csv, tsv, json, or ndjson. Default: csv"),
		),
	)
}

// Handle processes the qualtrics-export prompt request.
func (p *ExportPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	survey := ""
	format := "csv"
	if args := req.Params.Arguments; args != nil {
		if s, ok := args["survey"]; ok && s != "" {
			survey = s
		}
		if f, ok := args["format"]; ok && f != "" {
			format = f
		}
	}

	findStep := "1. Run `list_surveys` and ask me which survey to export\n"
	if survey != "" {
		findStep = fmt.Sprintf(
			"1. Find the survey matching '%s' — if it looks like an id (SV_...), use it directly; otherwise run `list_surveys` and match by name\n",
			survey)
	}

	return &mcp.GetPromptResult{
		Description: "Export survey responses",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to export survey responses from Qualtrics in %s format.\n\n"+
						"Please:\n"+
						"%s"+
						"2. Ask me whether I want all responses or a filtered subset (date range, completed only, specific questions)\n"+
						"3. Run `export_survey_responses` with the survey id, format='%s', and any filters I gave you\n"+
						"4. If the export times out, use `check_export_progress` with the returned progress id until it reports 100%%, then `get_export_file`\n"+
						"5. Summarize the exported data: how many responses, the date range covered, and anything notable\n\n"+
						"If the result was saved to a file, tell me the path instead of dumping the contents.",
					format, findStep, format,
				)),
			},
		},
	}, nil
}
