// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here — only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/surveykit/qualtrics-mcp/internal/config"
	"github.com/surveykit/qualtrics-mcp/internal/export"
	"github.com/surveykit/qualtrics-mcp/internal/files"
	"github.com/surveykit/qualtrics-mcp/internal/prompts"
	"github.com/surveykit/qualtrics-mcp/internal/qualtrics"
	"github.com/surveykit/qualtrics-mcp/internal/ratelimit"
	"github.com/surveykit/qualtrics-mcp/internal/resources"
	"github.com/surveykit/qualtrics-mcp/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function flushes the logger and must be called
// on shutdown (typically via defer). It is always non-nil.
func New() (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	cfg, err := config.Load()
	if err != nil {
		return nil, noop, fmt.Errorf("loading configuration: %w", err)
	}

	// Logs go to stderr: stdout belongs to the MCP stdio transport and
	// must carry nothing but protocol frames.
	log, err := zap.NewProduction()
	if err != nil {
		return nil, noop, fmt.Errorf("creating logger: %w", err)
	}
	cleanup := func() { _ = log.Sync() }

	limiter := ratelimit.New(cfg.RateLimitEnabled, cfg.RequestsPerMinute)
	client := qualtrics.New(cfg, limiter, log)
	poller := export.NewPoller(client, log)
	store := files.NewStore(cfg.DownloadDir)

	log.Info("server configured",
		zap.String("version", Version),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("rate_limit_enabled", cfg.RateLimitEnabled),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
		zap.Duration("request_timeout", cfg.RequestTimeout))

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"qualtrics-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register survey tools ---

	listSurveys := tools.NewListSurveysTool(client)
	s.AddTool(listSurveys.Definition(), listSurveys.Handle)

	getSurvey := tools.NewGetSurveyTool(client)
	s.AddTool(getSurvey.Definition(), getSurvey.Handle)

	getFlow := tools.NewGetSurveyFlowTool(client)
	s.AddTool(getFlow.Definition(), getFlow.Handle)

	// --- Register response/export tools ---

	exportResponses := tools.NewExportResponsesTool(poller, store)
	s.AddTool(exportResponses.Definition(), exportResponses.Handle)

	checkProgress := tools.NewCheckExportProgressTool(poller)
	s.AddTool(checkProgress.Definition(), checkProgress.Handle)

	getFile := tools.NewGetExportFileTool(poller, store)
	s.AddTool(getFile.Definition(), getFile.Handle)

	getResponse := tools.NewGetResponseTool(client)
	s.AddTool(getResponse.Definition(), getResponse.Handle)

	// --- Register distribution tools ---

	listDistributions := tools.NewListDistributionsTool(client)
	s.AddTool(listDistributions.Definition(), listDistributions.Handle)

	getDistribution := tools.NewGetDistributionTool(client)
	s.AddTool(getDistribution.Definition(), getDistribution.Handle)

	deleteDistribution := tools.NewDeleteDistributionTool(client)
	s.AddTool(deleteDistribution.Definition(), deleteDistribution.Handle)

	// --- Register contact tools ---

	listMailingLists := tools.NewListMailingListsTool(client)
	s.AddTool(listMailingLists.Definition(), listMailingLists.Handle)

	listContacts := tools.NewListContactsTool(client)
	s.AddTool(listContacts.Definition(), listContacts.Handle)

	// --- Register account tools ---

	whoAmI := tools.NewWhoAmITool(client)
	s.AddTool(whoAmI.Definition(), whoAmI.Handle)

	// --- Register prompts ---

	exportPrompt := prompts.NewExportPrompt()
	s.AddPrompt(exportPrompt.Definition(), exportPrompt.Handle)

	healthPrompt := prompts.NewHealthPrompt()
	s.AddPrompt(healthPrompt.Definition(), healthPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(*cfg, limiter, Version)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use the server effectively.
func serverInstructions() string {
	return `You have access to a Qualtrics MCP server that exposes the Qualtrics
survey platform: surveys, response exports, distributions, mailing
lists, and contacts.

## Getting oriented
- who_am_i verifies the configured token and shows the account.
- list_surveys shows the surveys the account can access; every other
  tool needs ids from it (SV_... survey ids).
- The qualtrics://server/status resource reports the data center,
  timeout, and rate-limiter state.

## Exporting responses (the main workflow)
1. Call export_survey_responses with the survey id. It starts a
   server-side job and polls for up to ~5 minutes.
2. Small results come back inline; results over 100 KiB are saved to
   the download directory and you get the path.
3. If the poll budget runs out you get a progress id — the job keeps
   running on the Qualtrics side. Use check_export_progress to watch
   it and get_export_file once it reports 100%.
4. If a non-CSV export fails, the server automatically retries once as
   CSV with only date and completion-status filters. The response says
   when that happened — relay it to the user, since column selections
   were dropped.

## Error handling
- Tool errors include the Qualtrics response verbatim plus a hint line.
  Relay the hint — it names the environment variable or id to fix.
- 401/403 means a token problem; 404 usually means a mistyped id
  (Qualtrics ids are case-sensitive).
- Requests are rate-limited client-side. Sustained bursts will pause
  between calls rather than fail; this is normal.

## Cautions
- delete_distribution is irreversible. Always confirm with the user
  before calling it.
- Exports of large surveys can be slow. Prefer filters (start_date,
  end_date, response_status='complete') over exporting everything.`
}
