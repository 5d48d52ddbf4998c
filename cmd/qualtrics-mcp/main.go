// qualtrics-mcp: Qualtrics MCP Server
//
// An MCP server that gives AI assistants (Claude Code, Cursor, VS Code
// Copilot, and any other MCP host) access to the Qualtrics survey
// platform: surveys, response exports, distributions, and contacts.
//
// Usage:
//
//	qualtrics-mcp serve    # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	qserver "github.com/surveykit/qualtrics-mcp/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("qualtrics-mcp v%s\n", qserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	// Best-effort .env load for local development; real deployments set
	// the environment through the MCP host config.
	_ = godotenv.Load()

	s, cleanup, err := qserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `qualtrics-mcp v%s — Qualtrics MCP Server

Usage:
  qualtrics-mcp serve    Start the MCP server (stdio transport)

Configuration (environment):
  QUALTRICS_API_TOKEN              API token (required)
  QUALTRICS_DATA_CENTER            Data-center id, e.g. yul1 (required
                                   unless QUALTRICS_BASE_URL is set)
  QUALTRICS_BASE_URL               Full API root, overrides the data center
  QUALTRICS_RATE_LIMIT_ENABLED     Client-side rate limiting (default true)
  QUALTRICS_REQUESTS_PER_MINUTE    Sliding-window budget (default 300)
  QUALTRICS_REQUEST_TIMEOUT_MS     Per-request deadline (default 30000)
  QUALTRICS_DOWNLOAD_DIR           Export artifact directory (default ./qualtrics-downloads)

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "qualtrics": {
        "command": "qualtrics-mcp",
        "args": ["serve"],
        "env": {
          "QUALTRICS_API_TOKEN": "...",
          "QUALTRICS_DATA_CENTER": "yul1"
        }
      }
    }
  }
`, qserver.Version)
}
