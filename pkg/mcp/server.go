package mcp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	"github.com/Sriram-PR/page-mirror/pkg/fetch"
	"github.com/Sriram-PR/page-mirror/pkg/orchestrate"
)

const (
	serverName    = "page-mirror"
	serverVersion = "1.0.0"

	hostEvictionInterval = 5 * time.Minute
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig // Must be validated
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes page mirroring as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager

	// Shared by every job so per-host limits hold across concurrent mirrors
	downloader *fetch.Downloader
	hosts      *fetch.HostSemaphorePool

	stopEviction context.CancelFunc
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	log := cfg.Logger.WithField("component", "mcp")
	downloader, hosts := orchestrate.NewDownloader(cfg.AppConfig, log)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        log,
		jobManager: NewJobManager(),
		downloader: downloader,
		hosts:      hosts,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	mirrorPageTool := mcp.NewTool("mirror_page",
		mcp.WithDescription("Save a web page and its same-origin images, stylesheets and scripts to disk, rewriting the page to use the local copies"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute URL of the page to mirror"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory receiving the HTML file and the asset directory (defaults to the configured output_dir)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the mirror to finish (default true). With false, returns a job ID immediately."),
		),
	)
	s.mcpServer.AddTool(mirrorPageTool, s.handleMirrorPage)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and result of a mirror job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by mirror_page"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running mirror job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by mirror_page"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	deriveFilenameTool := mcp.NewTool("derive_filename",
		mcp.WithDescription("Show how a resource reference found on a page would be classified and named, without fetching anything"),
		mcp.WithString("page_url",
			mcp.Required(),
			mcp.Description("Absolute URL of the page containing the reference"),
		),
		mcp.WithString("reference",
			mcp.Required(),
			mcp.Description("Attribute value as authored, e.g. '/assets/a.png'"),
		),
	)
	s.mcpServer.AddTool(deriveFilenameTool, s.handleDeriveFilename)

	s.log.Infof("Registered %d MCP tools", 4)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	evictionCtx, cancel := context.WithCancel(context.Background())
	s.stopEviction = cancel
	go s.hosts.RunEviction(evictionCtx, hostEvictionInterval)
	defer cancel()

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

// Shutdown cancels running jobs and stops background maintenance
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	if s.stopEviction != nil {
		s.stopEviction()
	}
	return nil
}
