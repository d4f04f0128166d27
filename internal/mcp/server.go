package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/analysis"
	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/descriptions"
	"github.com/a3tai/label-extractor/internal/pdf"
	"github.com/a3tai/label-extractor/internal/pipeline"
	"github.com/a3tai/label-extractor/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// Services are the collaborators the tools call into.
type Services struct {
	Store     storage.ObjectStore
	Pipeline  *pipeline.Pipeline
	Inspector *pdf.Inspector
	Logger    *zap.Logger
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	store     storage.ObjectStore
	pipeline  *pipeline.Pipeline
	inspector *pdf.Inspector
	logger    *zap.Logger
	mcpServer *server.MCPServer

	// stdio transport streams
	in  io.Reader
	out io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc Services) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if svc.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if svc.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if svc.Inspector == nil {
		svc.Inspector = pdf.NewInspector(cfg.MaxFileSize)
	}
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		store:     svc.Store,
		pipeline:  svc.Pipeline,
		inspector: svc.Inspector,
		logger:    svc.Logger,
		mcpServer: mcpServer,
		in:        os.Stdin,
		out:       os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"label_list_documents",
		mcp.WithDescription(descriptions.GetToolDescription("label_list_documents")),
		mcp.WithString("bucket",
			mcp.Description("Bucket to list (uses the configured bucket if empty)"),
		),
		mcp.WithString("prefix",
			mcp.Description("Key prefix to list (uses the configured prefix if empty)"),
		),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		"label_extract_document",
		mcp.WithDescription(descriptions.GetToolDescription("label_extract_document")),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Object key of the label PDF"),
		),
		mcp.WithString("bucket",
			mcp.Description("Bucket holding the PDF (uses the configured bucket if empty)"),
		),
	), s.handleExtractDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		"label_extract_response",
		mcp.WithDescription(descriptions.GetToolDescription("label_extract_response")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to a saved analysis response JSON file"),
		),
	), s.handleExtractResponse)

	s.mcpServer.AddTool(mcp.NewTool(
		"label_extract_batch",
		mcp.WithDescription(descriptions.GetToolDescription("label_extract_batch")),
	), s.handleExtractBatch)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_check",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_check")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	), s.handlePDFCheck)

	s.mcpServer.AddTool(mcp.NewTool(
		"label_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("label_server_info")),
	), s.handleServerInfo)
}

// Handler functions

type documentList struct {
	Bucket    string               `json:"bucket"`
	Prefix    string               `json:"prefix"`
	Count     int                  `json:"count"`
	Documents []storage.ObjectInfo `json:"documents"`
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bucket := request.GetString("bucket", "")
	if bucket == "" {
		bucket = s.config.Bucket
	}
	prefix := request.GetString("prefix", "")
	if prefix == "" {
		prefix = s.config.Prefix
	}

	objects, err := s.store.List(ctx, bucket, prefix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs := storage.FilterPDF(objects)
	if docs == nil {
		docs = []storage.ObjectInfo{}
	}

	return jsonResult(documentList{Bucket: bucket, Prefix: prefix, Count: len(docs), Documents: docs})
}

type extractedDocument struct {
	Source  string            `json:"source"`
	Columns []string          `json:"columns"`
	Fields  map[string]string `json:"fields"`
}

func (s *Server) handleExtractDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !storage.IsPDF(key) {
		return mcp.NewToolResultError(fmt.Sprintf("not a PDF key: %s", key)), nil
	}
	bucket := request.GetString("bucket", "")
	if bucket == "" {
		bucket = s.pipeline.Bucket()
	}

	rec, err := s.pipeline.ExtractDocument(ctx, analysis.DocumentRef{Bucket: bucket, Key: key})
	if err != nil {
		s.logger.Error("Extraction failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(extractedDocument{Source: rec.Source(), Columns: rec.Schema(), Fields: rec.Map()})
}

func (s *Server) handleExtractResponse(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := analysis.ReadResponseFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec := s.pipeline.Extractor().Extract(filepath.Base(path), resp.Blocks)

	return jsonResult(extractedDocument{Source: rec.Source(), Columns: rec.Schema(), Fields: rec.Map()})
}

func (s *Server) handleExtractBatch(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.pipeline.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("batch stopped after %d documents: %v", summary.Processed, err)), nil
	}
	return jsonResult(summary)
}

func (s *Server) handlePDFCheck(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.inspector.Inspect(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

type serverInfo struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Bucket   string   `json:"bucket"`
	Prefix   string   `json:"prefix"`
	Store    string   `json:"store"`
	Analyzer string   `json:"analyzer"`
	Mode     string   `json:"analysis_mode"`
	Output   string   `json:"output"`
	Section  []string `json:"section_markers"`
	Columns  []string `json:"columns"`
	Tools    []string `json:"tools"`
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	section := s.pipeline.Extractor().Section()
	return jsonResult(serverInfo{
		Name:     s.config.ServerName,
		Version:  s.config.Version,
		Bucket:   s.config.Bucket,
		Prefix:   s.config.Prefix,
		Store:    s.config.Store,
		Analyzer: s.config.Analyzer,
		Mode:     s.config.AnalysisMode,
		Output:   s.config.Output,
		Section:  []string{section.Start, section.End},
		Columns:  s.pipeline.Extractor().Schema(),
		Tools:    descriptions.GetAllToolNames(),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves until ctx is cancelled or stdin is closed
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("Starting MCP server in stdio mode", zap.String("bucket", s.config.Bucket))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, s.in, s.out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves SSE on the configured address until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting MCP server", zap.String("address", addr))
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down SSE server: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}
