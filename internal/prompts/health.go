package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// HealthPrompt handles the qualtrics-health MCP prompt.
// It verifies the token, data center, and API reachability in one pass.
type HealthPrompt struct{}

// NewHealthPrompt creates a HealthPrompt.
func NewHealthPrompt() *HealthPrompt {
	return &HealthPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *HealthPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("qualtrics-health",
		mcp.WithPromptDescription(
			"Check that the Qualtrics connection works: verify the API "+
				"token, data center, and account permissions.",
		),
	)
}

// Handle processes the qualtrics-health prompt request.
func (p *HealthPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Check Qualtrics connectivity",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Check my Qualtrics setup.\n\n" +
						"Please:\n" +
						"1. Run `who_am_i` to verify the token and show which account it belongs to\n" +
						"2. Run `list_surveys` to confirm the token can read survey data\n" +
						"3. Read the `qualtrics://server/status` resource and report the data center, request timeout, and rate-limiter state\n" +
						"4. Summarize: is everything working, and if not, what should I fix?\n\n" +
						"If any step fails with 401/403, tell me to check QUALTRICS_API_TOKEN. " +
						"If the network call fails entirely, tell me to check QUALTRICS_DATA_CENTER.",
				),
			},
		},
	}, nil
}
