package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/surveykit/qualtrics-mcp/internal/export"
)

// ExportResponsesTool handles the export_survey_responses MCP tool.
// It drives the full start → poll → download protocol, including the
// CSV fallback and the inline-vs-file sizing decision.
type ExportResponsesTool struct {
	poller exporter
	store  artifactStore
}

// NewExportResponsesTool creates an ExportResponsesTool with its dependencies.
func NewExportResponsesTool(poller exporter, store artifactStore) *ExportResponsesTool {
	return &ExportResponsesTool{poller: poller, store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ExportResponsesTool) Definition() mcp.Tool {
	return mcp.NewTool("export_survey_responses",
		mcp.WithDescription(
			"Export a survey's responses. Starts a server-side export "+
				"job, polls until it completes (up to ~5 minutes), and "+
				"returns the data inline or saves it to a file. If the "+
				"export does not finish in time you get the progress id "+
				"back — use check_export_progress to resume. Large "+
				"results (>100 KiB) are always saved to a file.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id (e.g. SV_abc123)"),
		),
		mcp.WithString("format",
			mcp.Description("Export format: csv, tsv, json, or ndjson (default csv)"),
		),
		mcp.WithString("start_date",
			mcp.Description("Only include responses recorded at/after this ISO-8601 timestamp"),
		),
		mcp.WithString("end_date",
			mcp.Description("Only include responses recorded before this ISO-8601 timestamp"),
		),
		mcp.WithString("response_status",
			mcp.Description("Completion-status filter, e.g. 'complete'"),
		),
		mcp.WithString("question_ids",
			mcp.Description("Comma-separated question ids to include (e.g. QID1,QID2)"),
		),
		mcp.WithString("embedded_data_ids",
			mcp.Description("Comma-separated embedded-data field names to include"),
		),
		mcp.WithBoolean("wait_for_completion",
			mcp.Description("Poll until the export finishes (default true). Set false to fire-and-forget."),
		),
		mcp.WithBoolean("save_to_file",
			mcp.Description("Always save the result to the download directory, even when small"),
		),
	)
}

// Handle processes the export_survey_responses tool call.
func (t *ExportResponsesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}

	format := strings.ToLower(req.GetString("format", "csv"))
	switch format {
	case "csv", "tsv", "json", "ndjson":
	default:
		return mcp.NewToolResultError(
			fmt.Sprintf("unsupported format %q — use csv, tsv, json, or ndjson", format)), nil
	}

	saveToFile := req.GetBool("save_to_file", false)

	exportReq := export.Request{
		SurveyID:          surveyID,
		Format:            format,
		WaitForCompletion: req.GetBool("wait_for_completion", true),
		Filters: export.Filters{
			StartDate:       req.GetString("start_date", ""),
			EndDate:         req.GetString("end_date", ""),
			Status:          req.GetString("response_status", ""),
			QuestionIDs:     csvList(req.GetString("question_ids", "")),
			EmbeddedDataIDs: csvList(req.GetString("embedded_data_ids", "")),
		},
	}

	res := t.poller.Run(ctx, exportReq)

	switch res.Outcome {
	case export.OutcomeStarted:
		return mcp.NewToolResultText(t.renderStarted(surveyID, res)), nil

	case export.OutcomeCompleted, export.OutcomeCompletedViaFallback:
		return t.renderCompleted(surveyID, res, saveToFile)

	case export.OutcomeTimeout, export.OutcomeFallbackTimeout:
		return mcp.NewToolResultText(t.renderTimeout(surveyID, res)), nil

	default:
		msg := fmt.Sprintf("export of survey %s failed: %v", surveyID, res.Err)
		if res.FallbackErr != nil {
			msg += fmt.Sprintf("\nfallback (csv) also failed: %v", res.FallbackErr)
		}
		return mcp.NewToolResultError(msg + "\n\nHint: " + errorHint(res.Err)), nil
	}
}

// renderStarted reports a fire-and-forget acceptance.
func (t *ExportResponsesTool) renderStarted(surveyID string, res export.Result) string {
	var sb strings.Builder
	sb.WriteString("## Export Started\n\n")
	sb.WriteString(fmt.Sprintf("**Survey:** %s\n", surveyID))
	sb.WriteString(fmt.Sprintf("**Progress ID:** %s\n", res.ProgressID))
	sb.WriteString(fmt.Sprintf("**Format:** %s\n", res.Format))
	if res.Err != nil {
		sb.WriteString(fmt.Sprintf("\nNote: the requested format failed (%v); the job was restarted as csv.\n", res.Err))
	}
	sb.WriteString("\nThe job is running server-side. Check it with `check_export_progress`.\n")
	return sb.String()
}

// renderCompleted applies the sizing policy and renders the artifact
// or its saved location.
func (t *ExportResponsesTool) renderCompleted(surveyID string, res export.Result, saveToFile bool) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("## Export Complete\n\n")
	sb.WriteString(fmt.Sprintf("**Survey:** %s\n", surveyID))
	sb.WriteString(fmt.Sprintf("**Format:** %s\n", res.Format))
	sb.WriteString(fmt.Sprintf("**Size:** %d bytes\n", len(res.Content)))
	sb.WriteString(fmt.Sprintf("**Status checks:** %d\n", res.Checks))

	if res.Outcome == export.OutcomeCompletedViaFallback {
		sb.WriteString(fmt.Sprintf("\nThe requested format failed (%v) — this is the csv fallback with only date and completion-status filters applied.\n", res.Err))
	}

	// Large artifacts are never inlined; small ones are saved only on
	// request.
	mustPersist := res.NeedsPersistence()
	if mustPersist || saveToFile {
		saved, err := t.store.Save(surveyID, res.Format, res.Content, mustPersist && !saveToFile)
		if err != nil {
			return toolError("saving export artifact", err), nil
		}
		sb.WriteString(fmt.Sprintf("\n**Saved to:** %s (%d bytes", saved.Path, saved.Bytes))
		if saved.Auto {
			sb.WriteString(", saved automatically — too large to return inline")
		}
		sb.WriteString(")\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	sb.WriteString("\n### Data\n\n```\n")
	sb.WriteString(res.Content)
	sb.WriteString("\n```\n")
	return mcp.NewToolResultText(sb.String()), nil
}

// renderTimeout reports budget exhaustion — not an error; the remote
// job may still finish.
func (t *ExportResponsesTool) renderTimeout(surveyID string, res export.Result) string {
	var sb strings.Builder
	sb.WriteString("## Export Still Running\n\n")
	sb.WriteString(fmt.Sprintf("**Survey:** %s\n", surveyID))
	sb.WriteString(fmt.Sprintf("**Progress ID:** %s\n", res.ProgressID))
	sb.WriteString(fmt.Sprintf("**Status checks performed:** %d\n", res.Checks))
	if res.Outcome == export.OutcomeFallbackTimeout {
		sb.WriteString(fmt.Sprintf("\nThe requested format failed (%v); the csv fallback is still running.\n", res.Err))
	}
	sb.WriteString("\nThe polling budget (~5 minutes) ran out before the job finished. ")
	sb.WriteString("It may still complete server-side — check with `check_export_progress` ")
	sb.WriteString("and download with `get_export_file` once it reports 100%.\n")
	return sb.String()
}

// CheckExportProgressTool handles the check_export_progress MCP tool.
// It is the recovery path for exports that outlived the in-process
// polling budget.
type CheckExportProgressTool struct {
	poller exporter
}

// NewCheckExportProgressTool creates a CheckExportProgressTool.
func NewCheckExportProgressTool(poller exporter) *CheckExportProgressTool {
	return &CheckExportProgressTool{poller: poller}
}

// Definition returns the MCP tool definition for registration.
func (t *CheckExportProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("check_export_progress",
		mcp.WithDescription(
			"Check the status of an export job started earlier "+
				"(by export_survey_responses). Returns percent complete "+
				"and, once finished, the file id to pass to get_export_file.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id the export belongs to"),
		),
		mcp.WithString("progress_id",
			mcp.Required(),
			mcp.Description("Progress id returned when the export was started (e.g. ES_abc123)"),
		),
	)
}

// Handle processes the check_export_progress tool call.
func (t *CheckExportProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}
	progressID, ok := requireString(req, "progress_id")
	if !ok {
		return mcp.NewToolResultError("'progress_id' is required"), nil
	}

	progress, err := t.poller.CheckProgress(ctx, surveyID, progressID)
	if err != nil {
		return toolError(fmt.Sprintf("checking export %s", progressID), err), nil
	}

	var sb strings.Builder
	sb.WriteString("## Export Progress\n\n")
	sb.WriteString(fmt.Sprintf("**Progress ID:** %s\n", progressID))
	sb.WriteString(fmt.Sprintf("**Percent complete:** %.0f%%\n", progress.Percent))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", progress.Status))

	switch {
	case progress.Failed():
		sb.WriteString("\nThe export failed server-side. Start a new one with `export_survey_responses` (csv is the safest format).\n")
	case progress.Complete():
		sb.WriteString(fmt.Sprintf("\n**File ID:** %s\n\nDownload it with `get_export_file`.\n", progress.FileID))
	default:
		sb.WriteString(fmt.Sprintf("\nOutcome so far: %s. Check again shortly.\n", export.OutcomeInProgress))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// GetExportFileTool handles the get_export_file MCP tool.
type GetExportFileTool struct {
	poller exporter
	store  artifactStore
}

// NewGetExportFileTool creates a GetExportFileTool with its dependencies.
func NewGetExportFileTool(poller exporter, store artifactStore) *GetExportFileTool {
	return &GetExportFileTool{poller: poller, store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *GetExportFileTool) Definition() mcp.Tool {
	return mcp.NewTool("get_export_file",
		mcp.WithDescription(
			"Download a completed export file. Use the file id reported "+
				"by check_export_progress. Large files (>100 KiB) are "+
				"saved to the download directory instead of returned inline.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id the export belongs to"),
		),
		mcp.WithString("file_id",
			mcp.Required(),
			mcp.Description("File id from a completed export"),
		),
		mcp.WithBoolean("save_to_file",
			mcp.Description("Always save to the download directory, even when small"),
		),
	)
}

// Handle processes the get_export_file tool call.
func (t *GetExportFileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}
	fileID, ok := requireString(req, "file_id")
	if !ok {
		return mcp.NewToolResultError("'file_id' is required"), nil
	}

	content, err := t.poller.Download(ctx, surveyID, fileID)
	if err != nil {
		return toolError(fmt.Sprintf("downloading export file %s", fileID), err), nil
	}

	res := export.Result{Content: content, Format: "csv"}
	saveToFile := req.GetBool("save_to_file", false)

	var sb strings.Builder
	sb.WriteString("## Export File\n\n")
	sb.WriteString(fmt.Sprintf("**Survey:** %s\n", surveyID))
	sb.WriteString(fmt.Sprintf("**Size:** %d bytes\n", len(content)))

	mustPersist := res.NeedsPersistence()
	if mustPersist || saveToFile {
		saved, err := t.store.Save(surveyID, res.Format, content, mustPersist && !saveToFile)
		if err != nil {
			return toolError("saving export artifact", err), nil
		}
		sb.WriteString(fmt.Sprintf("\n**Saved to:** %s (%d bytes", saved.Path, saved.Bytes))
		if saved.Auto {
			sb.WriteString(", saved automatically — too large to return inline")
		}
		sb.WriteString(")\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	sb.WriteString("\n### Data\n\n```\n")
	sb.WriteString(content)
	sb.WriteString("\n```\n")
	return mcp.NewToolResultText(sb.String()), nil
}

// GetResponseTool handles the get_survey_response MCP tool.
type GetResponseTool struct {
	client api
}

// NewGetResponseTool creates a GetResponseTool with the given pipeline.
func NewGetResponseTool(client api) *GetResponseTool {
	return &GetResponseTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *GetResponseTool) Definition() mcp.Tool {
	return mcp.NewTool("get_survey_response",
		mcp.WithDescription(
			"Get a single survey response by id. For bulk data use "+
				"export_survey_responses instead.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id (e.g. SV_abc123)"),
		),
		mcp.WithString("response_id",
			mcp.Required(),
			mcp.Description("Response id (e.g. R_abc123)"),
		),
	)
}

// Handle processes the get_survey_response tool call.
func (t *GetResponseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}
	responseID, ok := requireString(req, "response_id")
	if !ok {
		return mcp.NewToolResultError("'response_id' is required"), nil
	}

	resp, err := t.client.Get(ctx, fmt.Sprintf("/surveys/%s/responses/%s", surveyID, responseID))
	if err != nil {
		return toolError(fmt.Sprintf("getting response %s", responseID), err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Response %s\n\n", responseID))
	writeJSON(&sb, resultMap(resp))

	return mcp.NewToolResultText(sb.String()), nil
}
