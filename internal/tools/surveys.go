package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListSurveysTool handles the list_surveys MCP tool.
type ListSurveysTool struct {
	client api
}

// NewListSurveysTool creates a ListSurveysTool with the given pipeline.
func NewListSurveysTool(client api) *ListSurveysTool {
	return &ListSurveysTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListSurveysTool) Definition() mcp.Tool {
	return mcp.NewTool("list_surveys",
		mcp.WithDescription(
			"List the surveys the configured account can access. "+
				"Results are paginated; pass the offset from a previous "+
				"call's footer to fetch the next page.",
		),
		mcp.WithNumber("offset",
			mcp.Description("Pagination offset from a previous call (default 0)"),
		),
	)
}

// Handle processes the list_surveys tool call.
func (t *ListSurveysTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/surveys"
	if offset := int(req.GetFloat("offset", 0)); offset > 0 {
		path = fmt.Sprintf("/surveys?offset=%d", offset)
	}

	resp, err := t.client.Get(ctx, path)
	if err != nil {
		return toolError("listing surveys", err), nil
	}

	items := elements(resp)

	var sb strings.Builder
	sb.WriteString("## Surveys\n\n")
	if len(items) == 0 {
		sb.WriteString("No surveys found for this account.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	for _, item := range items {
		survey, ok := item.(map[string]any)
		if !ok {
			continue
		}
		active := "inactive"
		if b, _ := survey["isActive"].(bool); b {
			active = "active"
		}
		sb.WriteString(fmt.Sprintf("- **%s** (`%s`) — %s, last modified %s\n",
			stringField(survey, "name"),
			stringField(survey, "id"),
			active,
			stringField(survey, "lastModified")))
	}
	sb.WriteString(fmt.Sprintf("\n%d surveys on this page.\n", len(items)))

	if next := stringField(resultMap(resp), "nextPage"); next != "" {
		sb.WriteString(fmt.Sprintf("More available — next page: %s\n", next))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// GetSurveyTool handles the get_survey MCP tool.
type GetSurveyTool struct {
	client api
}

// NewGetSurveyTool creates a GetSurveyTool with the given pipeline.
func NewGetSurveyTool(client api) *GetSurveyTool {
	return &GetSurveyTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *GetSurveyTool) Definition() mcp.Tool {
	return mcp.NewTool("get_survey",
		mcp.WithDescription(
			"Get a survey's full definition: name, questions, blocks, "+
				"and metadata. Use list_surveys to find survey ids.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id (e.g. SV_abc123)"),
		),
	)
}

// Handle processes the get_survey tool call.
func (t *GetSurveyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}

	resp, err := t.client.Get(ctx, "/surveys/"+surveyID)
	if err != nil {
		return toolError(fmt.Sprintf("getting survey %s", surveyID), err), nil
	}

	var sb strings.Builder
	result := resultMap(resp)
	sb.WriteString(fmt.Sprintf("## Survey: %s\n\n", stringField(result, "name")))
	writeJSON(&sb, result)

	return mcp.NewToolResultText(sb.String()), nil
}

// GetSurveyFlowTool handles the get_survey_flow MCP tool.
type GetSurveyFlowTool struct {
	client api
}

// NewGetSurveyFlowTool creates a GetSurveyFlowTool with the given pipeline.
func NewGetSurveyFlowTool(client api) *GetSurveyFlowTool {
	return &GetSurveyFlowTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *GetSurveyFlowTool) Definition() mcp.Tool {
	return mcp.NewTool("get_survey_flow",
		mcp.WithDescription(
			"Get a survey's flow: the ordered blocks, branches, and "+
				"embedded-data elements respondents move through.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id (e.g. SV_abc123)"),
		),
	)
}

// Handle processes the get_survey_flow tool call.
func (t *GetSurveyFlowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}

	resp, err := t.client.Get(ctx, fmt.Sprintf("/survey-definitions/%s/flow", surveyID))
	if err != nil {
		return toolError(fmt.Sprintf("getting flow for survey %s", surveyID), err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Survey Flow: %s\n\n", surveyID))
	writeJSON(&sb, resultMap(resp))

	return mcp.NewToolResultText(sb.String()), nil
}
