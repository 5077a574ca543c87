package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/a3tai/pdf-batch-fill/internal/config"
	"github.com/a3tai/pdf-batch-fill/internal/pdf"
	"github.com/a3tai/pdf-batch-fill/internal/pdf/pdftest"
)

const clientsCSV = "Client,Prosystems #,Tax Year,Return Type,File Directory,States_A,States_B\n" +
	"Acme,1001,2023,1040,/clients/acme,CA,\n" +
	"Globex,1002,2022,1120,/clients/globex,,\"NY, TX\"\n"

func newTestServer(t *testing.T, dir string) *Server {
	t.Helper()

	cfg := &config.Config{
		Mode:        config.ModeStdio,
		Directory:   dir,
		OutputName:  config.DefaultOutputName,
		Delimiter:   ",",
		Version:     "1.0.0",
		ServerName:  "test-server",
		LogLevel:    "info",
		LogFormat:   config.LogFormatJSON,
		MaxFileSize: 1024 * 1024,
	}
	pdfService, err := pdf.NewService(pdf.Options{
		MaxFileSize: cfg.MaxFileSize,
		Directory:   cfg.Directory,
		OutputPath:  cfg.OutputPath(),
		Restrict:    true,
		Verify:      true,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("failed to create PDF service: %v", err)
	}
	server, err := NewServer(cfg, pdfService)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server
}

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	server := newTestServer(t, dir)

	if server.config == nil {
		t.Error("server config not set")
	}
	if server.pdfService == nil {
		t.Error("server pdfService not set")
	}
	if server.mcpServer == nil {
		t.Error("mcpServer should be initialized")
	}

	if _, err := NewServer(server.config, nil); err == nil {
		t.Error("expected error with nil PDF service")
	}
	if _, err := NewServer(nil, server.pdfService); err == nil {
		t.Error("expected error with nil config")
	}
}

func TestServer_HandleBatchFill(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "form.pdf", pdftest.Template())
	writeTestFile(t, dir, "clients.csv", []byte(clientsCSV))
	server := newTestServer(t, dir)

	result, err := server.handleBatchFill(context.Background(), callRequest(map[string]interface{}{
		"template": "form.pdf",
		"input":    "clients.csv",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}

	text := extractTextFromResult(result)
	output := filepath.Join(dir, config.DefaultOutputName)
	for _, want := range []string{"Merged 2 rows into: " + output, "Pages: 2", "Verified: true"} {
		if !strings.Contains(text, want) {
			t.Errorf("response missing %q:\n%s", want, text)
		}
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("merged output not written: %v", err)
	}
}

func TestServer_HandleBatchFill_CustomOutputAndDelimiter(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "form.pdf", pdftest.Template())
	writeTestFile(t, dir, "clients.tsv", []byte("Client\tTax Year\nAcme\t2023\n"))
	server := newTestServer(t, dir)

	result, err := server.handleBatchFill(context.Background(), callRequest(map[string]interface{}{
		"template":  "form.pdf",
		"input":     "clients.tsv",
		"output":    "out/season.pdf",
		"delimiter": "tab",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "season.pdf")); err != nil {
		t.Errorf("custom output not written: %v", err)
	}
}

func TestServer_HandleBatchFill_Errors(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "form.pdf", pdftest.Template())
	writeTestFile(t, dir, "clients.csv", []byte(clientsCSV))
	writeTestFile(t, dir, "broken.pdf", []byte("not a pdf"))
	server := newTestServer(t, dir)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing template",
			args: map[string]interface{}{"input": "clients.csv"},
			want: "template",
		},
		{
			name: "missing input",
			args: map[string]interface{}{"template": "form.pdf"},
			want: "input",
		},
		{
			name: "bad delimiter",
			args: map[string]interface{}{"template": "form.pdf", "input": "clients.csv", "delimiter": ";;"},
			want: "single character",
		},
		{
			name: "template outside directory",
			args: map[string]interface{}{"template": "../form.pdf", "input": "clients.csv"},
			want: "outside configured directory",
		},
		{
			name: "unreadable template",
			args: map[string]interface{}{"template": "broken.pdf", "input": "clients.csv"},
			want: "Batch failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.handleBatchFill(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned protocol error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected tool error result")
			}
			if text := extractTextFromResult(result); !strings.Contains(text, tt.want) {
				t.Errorf("error text %q does not contain %q", text, tt.want)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, config.DefaultOutputName)); !os.IsNotExist(err) {
		t.Error("failed batches must not write output")
	}
}

func TestServer_HandleTemplateFields(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "form.pdf", pdftest.Template())
	writeTestFile(t, dir, "partial.pdf", pdftest.FormTemplate(pdftest.TemplateOptions{
		Fields: []string{"Client", "Tax Year"},
	}))
	server := newTestServer(t, dir)

	result, err := server.handleTemplateFields(context.Background(), callRequest(map[string]interface{}{
		"path": "form.pdf",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := extractTextFromResult(result)
	if !strings.Contains(text, "All expected fields are present") {
		t.Errorf("expected complete template, got:\n%s", text)
	}
	if !strings.Contains(text, "ProSystem's #") {
		t.Errorf("field list missing ProSystem's #:\n%s", text)
	}

	result, err = server.handleTemplateFields(context.Background(), callRequest(map[string]interface{}{
		"path": "partial.pdf",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text = extractTextFromResult(result)
	if !strings.Contains(text, "Missing expected fields:") || !strings.Contains(text, "States") {
		t.Errorf("expected missing fields to be listed, got:\n%s", text)
	}
}

func TestServer_HandlePDFValidateFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "form.pdf", pdftest.Template())
	writeTestFile(t, dir, "fake.pdf", make([]byte, 1024))
	server := newTestServer(t, dir)

	result, err := server.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{
		"path": "form.pdf",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if text := extractTextFromResult(result); !strings.Contains(text, "PDF file is valid") {
		t.Errorf("expected valid PDF, got: %s", text)
	}

	result, err = server.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{
		"path": "fake.pdf",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if text := extractTextFromResult(result); !strings.Contains(text, "PDF validation failed") {
		t.Errorf("expected validation to fail, got: %s", text)
	}
}

func TestServer_HandleServerInfo(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "form.pdf", pdftest.Template())
	writeTestFile(t, dir, "clients.csv", []byte(clientsCSV))
	server := newTestServer(t, dir)

	result, err := server.handleServerInfo(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	text := extractTextFromResult(result)
	for _, want := range []string{
		"test-server v1.0.0",
		"form.pdf [template]",
		"clients.csv [input]",
		"Tax Year → Tax Year",
		"batch_fill",
		"template_fields",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("server info missing %q:\n%s", want, text)
		}
	}
}

func TestServer_FormatBatchFillResult_TruncatesWarnings(t *testing.T) {
	server := newTestServer(t, t.TempDir())

	warnings := make([]pdf.FieldWarning, maxListedWarnings+5)
	for i := range warnings {
		warnings[i] = pdf.FieldWarning{Row: i + 1, Field: "States", Message: "field not found: States"}
	}
	text := server.formatBatchFillResult(&pdf.BatchFillResult{
		Rows:     len(warnings),
		Pages:    len(warnings),
		Warnings: warnings,
	})

	if !strings.Contains(text, "Warnings (25)") {
		t.Errorf("expected warning count, got:\n%s", text)
	}
	if !strings.Contains(text, "... and 5 more warnings") {
		t.Errorf("expected truncation note, got:\n%s", text)
	}
}

// Helper function to extract text from MCP result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		// Handle pointer to TextContent as well
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
