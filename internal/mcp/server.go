package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/host/headless"
	"github.com/ziadkadry99/livepen/internal/logging"
	"github.com/ziadkadry99/livepen/internal/pens"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the preview engine as tools.
type Server struct {
	pens    *pens.Store
	timeout time.Duration
	log     *zap.Logger
	mcp     *server.MCPServer
}

// Options configures a Server. Pens may be nil, in which case the pen
// tools are not registered.
type Options struct {
	Pens            *pens.Store
	HeadlessTimeout time.Duration
	Logger          *zap.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(opts Options) *Server {
	s := &Server{
		pens:    opts.Pens,
		timeout: opts.HeadlessTimeout,
		log:     logging.OrNop(opts.Logger),
	}
	if s.timeout <= 0 {
		s.timeout = headless.DefaultTimeout
	}

	s.mcp = server.NewMCPServer(
		"livepen",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(composeDocumentTool, s.handleComposeDocument)
	s.mcp.AddTool(extractCodeBlocksTool, s.handleExtractCodeBlocks)
	s.mcp.AddTool(renderHeadlessTool, s.handleRenderHeadless)
	s.mcp.AddTool(listTemplatesTool, s.handleListTemplates)
	if s.pens != nil {
		s.mcp.AddTool(getPenTool, s.handleGetPen)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
