package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxreply/internal/assistant"
	"github.com/teemow/inboxreply/internal/logging"
)

// DefaultControlAddr is loopback only; the control surface has no
// authentication.
const DefaultControlAddr = "127.0.0.1:8090"

// Tool names exposed on /mcp.
const (
	ToolStatus = "assistant_status"
	ToolStop   = "assistant_stop"
)

// StopSource is the source recorded when a stop arrives over /mcp.
const StopSource = "mcp"

// StatusSource reports the scheduler status.
type StatusSource interface {
	Status() assistant.Status
}

// Stopper requests a stop of the assistant loop.
type Stopper interface {
	Request(source string)
	Requested() bool
}

// ControlServerConfig configures a ControlServer.
type ControlServerConfig struct {
	Addr    string
	Version string

	Status StatusSource
	Stop   Stopper
	Health *HealthChecker

	Logger logging.Logger
}

// ControlServer exposes health endpoints and an MCP endpoint to inspect
// and stop the assistant.
type ControlServer struct {
	addr       string
	status     StatusSource
	stop       Stopper
	health     *HealthChecker
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
	logger     logging.Logger
}

// NewControlServer creates a ControlServer.
func NewControlServer(config ControlServerConfig) (*ControlServer, error) {
	if config.Status == nil {
		return nil, fmt.Errorf("status source is required for control server")
	}
	if config.Stop == nil {
		return nil, fmt.Errorf("stopper is required for control server")
	}
	if config.Addr == "" {
		config.Addr = DefaultControlAddr
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.Health == nil {
		config.Health = NewHealthChecker(config.Stop.Requested)
	}
	if config.Logger == nil {
		config.Logger = logging.DefaultLogger()
	}

	s := &ControlServer{
		addr:   config.Addr,
		status: config.Status,
		stop:   config.Stop,
		health: config.Health,
		logger: logging.With(config.Logger, logging.KeyComponent, "control"),
	}

	s.mcpServer = mcpserver.NewMCPServer("inboxreply", config.Version,
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	return s, nil
}

func (s *ControlServer) registerTools() {
	statusTool := mcp.NewTool(ToolStatus,
		mcp.WithDescription("Show the assistant state, completed cycles, ledger size and the summary of the last cycle"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)

	stopTool := mcp.NewTool(ToolStop,
		mcp.WithDescription("Stop the assistant after the current cycle. The reply in progress is finished, no new mailbox check starts."),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.mcpServer.AddTool(stopTool, s.handleStop)
}

func (s *ControlServer) handleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(s.status.Status(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *ControlServer) handleStop(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.stop.Requested() {
		return mcp.NewToolResultText("Stop already requested."), nil
	}
	s.logger.Info("stop requested over control endpoint")
	s.stop.Request(StopSource)
	return mcp.NewToolResultText("Stop requested. The assistant finishes the current cycle and exits."), nil
}

// Handler returns the control mux: health endpoints and /mcp.
func (s *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux, func() string {
		return string(s.status.Status().State)
	})
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	))
	return mux
}

// MCPServer returns the underlying MCP server.
func (s *ControlServer) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Listen binds the configured address for Serve.
func (s *ControlServer) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return ln, nil
}

// Serve serves on ln until Shutdown.
func (s *ControlServer) Serve(ln net.Listener) error {
	s.logger.Info("starting control server", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the control server.
func (s *ControlServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down control server")
	return s.httpServer.Shutdown(ctx)
}
