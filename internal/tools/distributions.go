package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListDistributionsTool handles the list_distributions MCP tool.
type ListDistributionsTool struct {
	client api
}

// NewListDistributionsTool creates a ListDistributionsTool.
func NewListDistributionsTool(client api) *ListDistributionsTool {
	return &ListDistributionsTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListDistributionsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_distributions",
		mcp.WithDescription(
			"List the distributions (email invites, links, reminders) "+
				"for a survey, with send status and response counts.",
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id the distributions belong to"),
		),
	)
}

// Handle processes the list_distributions tool call.
func (t *ListDistributionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}

	resp, err := t.client.Get(ctx, "/distributions?surveyId="+surveyID)
	if err != nil {
		return toolError(fmt.Sprintf("listing distributions for %s", surveyID), err), nil
	}

	items := elements(resp)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Distributions for %s\n\n", surveyID))
	if len(items) == 0 {
		sb.WriteString("No distributions found.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	for _, item := range items {
		dist, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("- `%s` — %s, created %s, status %s\n",
			stringField(dist, "id"),
			stringField(dist, "requestType"),
			stringField(dist, "createdDate"),
			stringField(dist, "requestStatus")))
	}
	sb.WriteString(fmt.Sprintf("\n%d distributions.\n", len(items)))

	return mcp.NewToolResultText(sb.String()), nil
}

// GetDistributionTool handles the get_distribution MCP tool.
type GetDistributionTool struct {
	client api
}

// NewGetDistributionTool creates a GetDistributionTool.
func NewGetDistributionTool(client api) *GetDistributionTool {
	return &GetDistributionTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *GetDistributionTool) Definition() mcp.Tool {
	return mcp.NewTool("get_distribution",
		mcp.WithDescription(
			"Get one distribution's details: recipients, send dates, "+
				"and delivery statistics.",
		),
		mcp.WithString("distribution_id",
			mcp.Required(),
			mcp.Description("Distribution id (e.g. EMD_abc123)"),
		),
		mcp.WithString("survey_id",
			mcp.Required(),
			mcp.Description("Survey id the distribution belongs to"),
		),
	)
}

// Handle processes the get_distribution tool call.
func (t *GetDistributionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	distributionID, ok := requireString(req, "distribution_id")
	if !ok {
		return mcp.NewToolResultError("'distribution_id' is required"), nil
	}
	surveyID, ok := requireString(req, "survey_id")
	if !ok {
		return mcp.NewToolResultError("'survey_id' is required"), nil
	}

	path := fmt.Sprintf("/distributions/%s?surveyId=%s", distributionID, surveyID)
	resp, err := t.client.Get(ctx, path)
	if err != nil {
		return toolError(fmt.Sprintf("getting distribution %s", distributionID), err), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Distribution %s\n\n", distributionID))
	writeJSON(&sb, resultMap(resp))

	return mcp.NewToolResultText(sb.String()), nil
}

// DeleteDistributionTool handles the delete_distribution MCP tool.
type DeleteDistributionTool struct {
	client api
}

// NewDeleteDistributionTool creates a DeleteDistributionTool.
func NewDeleteDistributionTool(client api) *DeleteDistributionTool {
	return &DeleteDistributionTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteDistributionTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_distribution",
		mcp.WithDescription(
			"Delete a distribution. This cannot be undone — confirm "+
				"with the user before calling.",
		),
		mcp.WithString("distribution_id",
			mcp.Required(),
			mcp.Description("Distribution id to delete (e.g. EMD_abc123)"),
		),
	)
}

// Handle processes the delete_distribution tool call.
func (t *DeleteDistributionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	distributionID, ok := requireString(req, "distribution_id")
	if !ok {
		return mcp.NewToolResultError("'distribution_id' is required"), nil
	}

	if _, err := t.client.Delete(ctx, "/distributions/"+distributionID); err != nil {
		return toolError(fmt.Sprintf("deleting distribution %s", distributionID), err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Distribution %s deleted.", distributionID)), nil
}
