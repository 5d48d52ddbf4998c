package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListMailingListsTool handles the list_mailing_lists MCP tool.
type ListMailingListsTool struct {
	client api
}

// NewListMailingListsTool creates a ListMailingListsTool.
func NewListMailingListsTool(client api) *ListMailingListsTool {
	return &ListMailingListsTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListMailingListsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_mailing_lists",
		mcp.WithDescription(
			"List the mailing lists in the configured account. "+
				"Mailing lists hold the contacts distributions are sent to.",
		),
	)
}

// Handle processes the list_mailing_lists tool call.
func (t *ListMailingListsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.client.Get(ctx, "/mailinglists")
	if err != nil {
		return toolError("listing mailing lists", err), nil
	}

	items := elements(resp)

	var sb strings.Builder
	sb.WriteString("## Mailing Lists\n\n")
	if len(items) == 0 {
		sb.WriteString("No mailing lists found.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	for _, item := range items {
		list, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("- **%s** (`%s`)\n",
			stringField(list, "name"),
			stringField(list, "id")))
	}
	sb.WriteString(fmt.Sprintf("\n%d mailing lists.\n", len(items)))

	return mcp.NewToolResultText(sb.String()), nil
}

// ListContactsTool handles the list_contacts MCP tool.
type ListContactsTool struct {
	client api
}

// NewListContactsTool creates a ListContactsTool.
func NewListContactsTool(client api) *ListContactsTool {
	return &ListContactsTool{client: client}
}

// Definition returns the MCP tool definition for registration.
func (t *ListContactsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_contacts",
		mcp.WithDescription(
			"List the contacts in a mailing list, with email and "+
				"subscription status.",
		),
		mcp.WithString("mailing_list_id",
			mcp.Required(),
			mcp.Description("Mailing list id (e.g. ML_abc123)"),
		),
	)
}

// Handle processes the list_contacts tool call.
func (t *ListContactsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listID, ok := requireString(req, "mailing_list_id")
	if !ok {
		return mcp.NewToolResultError("'mailing_list_id' is required"), nil
	}

	resp, err := t.client.Get(ctx, fmt.Sprintf("/mailinglists/%s/contacts", listID))
	if err != nil {
		return toolError(fmt.Sprintf("listing contacts of %s", listID), err), nil
	}

	items := elements(resp)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Contacts in %s\n\n", listID))
	if len(items) == 0 {
		sb.WriteString("No contacts found.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	for _, item := range items {
		contact, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(stringField(contact, "firstName") + " " + stringField(contact, "lastName"))
		if name == "" {
			name = "(no name)"
		}
		unsubscribed := ""
		if b, _ := contact["unsubscribed"].(bool); b {
			unsubscribed = " — unsubscribed"
		}
		sb.WriteString(fmt.Sprintf("- %s <%s> (`%s`)%s\n",
			name,
			stringField(contact, "email"),
			stringField(contact, "id"),
			unsubscribed))
	}
	sb.WriteString(fmt.Sprintf("\n%d contacts.\n", len(items)))

	return mcp.NewToolResultText(sb.String()), nil
}
