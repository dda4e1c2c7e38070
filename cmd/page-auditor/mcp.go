package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sriram-PR/page-auditor/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (defaults apply when empty)")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	lf := addLogFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: page-auditor mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  page-auditor mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  page-auditor mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  start_audit        Start a background audit of links and images
  stop_audit         Stop the running audit
  get_audit_status   Progress of an audit run
  get_audit_results  Results of an audit run, optionally filtered
  check_url          Check a single URL immediately
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(exitSetup)
	}

	exitCode := doMcpServer(*configFile, *transport, *port, lf, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server.
// The MCP protocol owns stdout, so all diagnostics go to stderr or the log file.
func doMcpServer(configPath, transport string, port int, lf logFlags, stderr io.Writer) int {
	log, err := setupLogger(lf, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverCfg := &mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Logger:     log,
	}
	store, err := openCache(ctx, appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening cache: %v\n", err)
		return 1
	}
	if store != nil {
		defer store.Close()
		serverCfg.Cache = store
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)
	runErr := server.Run()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("MCP server shutdown: %v", err)
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
