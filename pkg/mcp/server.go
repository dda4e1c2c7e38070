package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/orchestrate"
	"github.com/Sriram-PR/page-auditor/pkg/storage"
)

const (
	serverName    = "page-auditor"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
	Cache      storage.ResultStore  // Optional
	Options    []orchestrate.Option // Extra auditor options, mainly for tests
}

// Server exposes the auditor as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
	auditor   *orchestrate.Auditor
	runs      *RunManager

	// Runs outlive the tool call that starts them, so they are bound to the server's lifetime
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "mcp")

	opts := append([]orchestrate.Option(nil), cfg.Options...)
	if cfg.Cache != nil {
		opts = append(opts, orchestrate.WithCache(cfg.Cache))
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       log,
		auditor:   orchestrate.NewAuditor(cfg.AppConfig, cfg.Logger.WithField("component", "auditor"), opts...),
		runs:      NewRunManager(defaultRunHistory),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	stringList := mcp.Items(map[string]any{"type": "string"})

	startAuditTool := mcp.NewTool("start_audit",
		mcp.WithDescription("Start a background audit of a page's links and images. Returns immediately with a run ID. Only one audit runs at a time."),
		mcp.WithString("page_url",
			mcp.Description("URL of the page the targets were harvested from; relative targets resolve against it"),
		),
		mcp.WithArray("links", mcp.Description("Hyperlink URLs to check"), stringList),
		mcp.WithArray("images", mcp.Description("Image URLs to check"), stringList),
		mcp.WithArray("urls", mcp.Description("Unsorted URLs, split into links and images by URL shape"), stringList),
		mcp.WithBoolean("check_anchors", mcp.Description("Verify that #fragment targets exist on the linked page")),
		mcp.WithBoolean("check_external", mcp.Description("Include links to other hosts (default from config)")),
		mcp.WithBoolean("check_images", mcp.Description("Include the image queue (default from config)")),
		mcp.WithBoolean("follow_redirects", mcp.Description("Follow redirects instead of reporting them (default from config)")),
	)
	s.mcpServer.AddTool(startAuditTool, s.handleStartAudit)

	stopAuditTool := mcp.NewTool("stop_audit",
		mcp.WithDescription("Stop the running audit. Probes already in flight still finish and are recorded."),
	)
	s.mcpServer.AddTool(stopAuditTool, s.handleStopAudit)

	statusTool := mcp.NewTool("get_audit_status",
		mcp.WithDescription("Get progress of an audit run"),
		mcp.WithString("run_id",
			mcp.Description("Run ID returned by start_audit (defaults to the most recent run)"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleGetAuditStatus)

	resultsTool := mcp.NewTool("get_audit_results",
		mcp.WithDescription("Get the results of an audit run, complete or so far"),
		mcp.WithString("run_id",
			mcp.Description("Run ID returned by start_audit (defaults to the most recent run)"),
		),
		mcp.WithString("filter",
			mcp.Description("Only return results in this bucket (success, warnings, errors) or with this exact status"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum results per queue (default: 100, max: 1000)"),
		),
	)
	s.mcpServer.AddTool(resultsTool, s.handleGetAuditResults)

	checkURLTool := mcp.NewTool("check_url",
		mcp.WithDescription("Check a single URL immediately and return its result"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to check"),
		),
		mcp.WithString("kind",
			mcp.Description("Probe as 'link' (default) or 'image'"),
		),
	)
	s.mcpServer.AddTool(checkURLTool, s.handleCheckURL)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	go s.auditor.RunMaintenance(s.ctx, 0)

	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown stops the active run and waits for it to settle or ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	defer s.cancel()

	run := s.auditor.Active()
	if run == nil {
		return nil
	}
	run.Stop()
	select {
	case <-run.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
