package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/a3tai/pdf-batch-fill/internal/config"
	"github.com/a3tai/pdf-batch-fill/internal/descriptions"
	"github.com/a3tai/pdf-batch-fill/internal/pdf"
	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
)

// maxListedWarnings caps the warnings echoed in a batch_fill response
const maxListedWarnings = 20

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     pdfService.Logger().With().Str("component", "mcp").Logger(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	batchFillTool := mcp.NewTool(
		"batch_fill",
		mcp.WithDescription(descriptions.BatchFillDescription),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Path to the form template PDF"),
		),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("Path to the delimited input file with a header row"),
		),
		mcp.WithString("output",
			mcp.Description("Path of the merged PDF (uses the configured output if empty)"),
		),
		mcp.WithString("delimiter",
			mcp.Description("Single delimiter character, or tab, semicolon or pipe (default ',')"),
		),
	)
	s.mcpServer.AddTool(batchFillTool, s.handleBatchFill)

	templateFieldsTool := mcp.NewTool(
		"template_fields",
		mcp.WithDescription(descriptions.TemplateFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the form template PDF"),
		),
	)
	s.mcpServer.AddTool(templateFieldsTool, s.handleTemplateFields)

	pdfValidateFileTool := mcp.NewTool(
		"pdf_validate_file",
		mcp.WithDescription(descriptions.PDFValidateFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(pdfValidateFileTool, s.handlePDFValidateFile)

	serverInfoTool := mcp.NewTool(
		"batch_server_info",
		mcp.WithDescription(descriptions.BatchServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleBatchFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	input, err := request.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	delimiter := s.config.Delimiter
	if d := request.GetString("delimiter", ""); d != "" {
		delimiter = d
	}
	comma, err := config.ParseDelimiter(delimiter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.BatchFillRequest{
		TemplatePath: template,
		InputPath:    input,
		OutputPath:   request.GetString("output", ""),
		Delimiter:    comma,
	}
	result, err := s.pdfService.FillBatch(ctx, req, pdf.RunOptions{})
	if err != nil {
		s.logger.Error().Err(err).Str("template", template).Str("input", input).Msg("batch_fill failed")
		return mcp.NewToolResultError(s.formatBatchError(err)), nil
	}

	return mcp.NewToolResultText(s.formatBatchFillResult(result)), nil
}

func (s *Server) handleTemplateFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.TemplateFields(pdf.TemplateFieldsRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatTemplateFieldsResult(result)), nil
}

func (s *Server) handlePDFValidateFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFValidateFile(pdf.PDFValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("PDF file is valid: %s", result.Path)
	} else {
		responseText = fmt.Sprintf("PDF validation failed: %s\nReason: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ServerInfo(ctx, pdf.ServerInfoRequest{}, s.config.ServerName, s.config.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatServerInfoResult(result)), nil
}

// Helper functions for formatting responses
func (s *Server) formatBatchFillResult(result *pdf.BatchFillResult) string {
	text := fmt.Sprintf("Merged %d rows into: %s\n", result.Rows, result.OutputPath)
	text += fmt.Sprintf("Run ID: %s\n", result.RunID)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Verified: %t\n", result.Verified)
	text += fmt.Sprintf("Duration: %d ms\n", result.DurationMS)

	if len(result.Warnings) > 0 {
		text += fmt.Sprintf("\nWarnings (%d):\n", len(result.Warnings))
		for i, w := range result.Warnings {
			if i >= maxListedWarnings {
				text += fmt.Sprintf("   ... and %d more warnings\n", len(result.Warnings)-maxListedWarnings)
				break
			}
			text += fmt.Sprintf("   Row %d: %s\n", w.Row, w.Message)
		}
	}

	return text
}

func (s *Server) formatBatchError(err error) string {
	text := fmt.Sprintf("Batch failed: %v", err)
	if row := pdferrors.RowOf(err); row > 0 {
		text += fmt.Sprintf("\nFailing row: %d", row)
	}
	text += "\nNo output was written."
	return text
}

func (s *Server) formatTemplateFieldsResult(result *pdf.TemplateFieldsResult) string {
	text := fmt.Sprintf("Template: %s\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Fields (%d):\n", len(result.Fields))
	for _, field := range result.Fields {
		text += fmt.Sprintf("  • %s\n", field)
	}

	if len(result.Missing) > 0 {
		text += fmt.Sprintf("\nMissing expected fields: %s\n", strings.Join(result.Missing, ", "))
		text += "These fields stay blank and are reported as warnings for every row.\n"
	} else {
		text += "\nAll expected fields are present.\n"
	}

	return text
}

func (s *Server) formatServerInfoResult(result *pdf.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Working Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📄 Default Output: %s\n", result.DefaultOutput)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n\n", result.MaxFileSize/(1024*1024))

	text += "🔗 Column Mappings:\n"
	for _, m := range result.ColumnMappings {
		text += fmt.Sprintf("   %s → %s\n", m.Column, m.Field)
	}
	text += "\n"

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // Limit to first 10 files for readability
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s [%s] (%d bytes)\n", i+1, file.Name, file.Kind, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No templates or inputs found in working directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance

	return text
}

// Run serves MCP over stdio until the client disconnects
func (s *Server) Run(ctx context.Context) error {
	if !s.config.IsStdioMode() {
		return fmt.Errorf("MCP transport requires stdio mode, got %q", s.config.Mode)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.Debug().
		Str("directory", s.pdfService.Directory()).
		Msg("starting MCP server in stdio mode")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
