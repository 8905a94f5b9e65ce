package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/colligo/internal/app"
	"github.com/ternarybob/colligo/internal/common"
)

// colligo-mcp exposes the crawl tool registry over MCP stdio so external
// agents can drive crawls with the same tools the toolbag uses.
func main() {
	configPath := os.Getenv("COLLIGO_CONFIG")
	if configPath == "" {
		configPath = "colligo.toml"
	}

	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console-only warn-level logger; stdio carries the MCP protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"colligo",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	registerCrawlTools(mcpServer, application, logger)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
