package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisrag/internal/pipeline"
)

// DefaultMaxInvoiceBytes bounds invoices read from disk by analyze_invoice.
const DefaultMaxInvoiceBytes = 4 << 20

// Server is an MCP server backed by an analysis pipeline.
type Server struct {
	mcp      *mcp.Server
	analyzer *pipeline.Analyzer
	metrics  *toolMetrics
	config   *Config
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "legisrag")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// MaxInvoiceBytes bounds invoice files read by analyze_invoice.
	MaxInvoiceBytes int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:            "legisrag",
		Version:         "dev",
		Logger:          zap.NewNop(),
		MaxInvoiceBytes: DefaultMaxInvoiceBytes,
	}
}

// NewServer creates an MCP server with the retrieval tools registered.
func NewServer(cfg *Config, analyzer *pipeline.Analyzer) (*Server, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}
	if cfg.MaxInvoiceBytes <= 0 {
		cfg.MaxInvoiceBytes = defaults.MaxInvoiceBytes
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		analyzer: analyzer,
		metrics:  newToolMetrics(cfg.Logger),
		config:   cfg,
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport",
		zap.String("name", s.config.Name),
		zap.String("version", s.config.Version),
	)
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server, for custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
