package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// WhoAmITool handles the who_am_i MCP tool. It doubles as the
// connectivity check: if this call works, the token and data center
// are configured correctly.
type WhoAmITool struct {
	client api
}

// NewWhoAmITool creates a WhoAmITool with the given pipeline.
func NewWhoAmITool(client api) *WhoAmITool {
	return &WhoAmITool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *WhoAmITool) Definition() mcp.Tool {
	return mcp.NewTool("who_am_i",
		mcp.WithDescription(
			"Show the account the configured API token belongs to. "+
				"Useful as a first call to verify connectivity and permissions.",
		),
	)
}

// Handle processes the who_am_i tool call.
func (t *WhoAmITool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.client.Get(ctx, "/whoami")
	if err != nil {
		return toolError("checking account identity", err), nil
	}

	result := resultMap(resp)

	var sb strings.Builder
	sb.WriteString("## Account\n\n")
	sb.WriteString(fmt.Sprintf("**User:** %s %s\n",
		stringField(result, "firstName"), stringField(result, "lastName")))
	sb.WriteString(fmt.Sprintf("**Email:** %s\n", stringField(result, "email")))
	sb.WriteString(fmt.Sprintf("**User ID:** %s\n", stringField(result, "userId")))
	sb.WriteString(fmt.Sprintf("**Brand:** %s\n", stringField(result, "brandId")))
	sb.WriteString(fmt.Sprintf("**Data center:** %s\n", stringField(result, "datacenter")))
	sb.WriteString(fmt.Sprintf("**Account type:** %s\n", stringField(result, "accountType")))

	return mcp.NewToolResultText(sb.String()), nil
}
