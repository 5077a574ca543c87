package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/pdf-batch-fill/internal/pdf/pdftest"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestValidator_ValidateFile(t *testing.T) {
	dir := t.TempDir()
	validator := NewValidator(1024 * 1024) // 1MB limit

	template := writeFile(t, dir, "form.pdf", pdftest.Template())
	notPDF := writeFile(t, dir, "rows.csv", []byte("Client\nAcme\n"))
	garbage := writeFile(t, dir, "garbage.pdf", []byte("this is not a pdf"))
	empty := writeFile(t, dir, "empty.pdf", nil)

	tests := []struct {
		name        string
		path        string
		expectValid bool
		wantMessage string
	}{
		{name: "valid template", path: template, expectValid: true},
		{name: "empty path", path: "", wantMessage: "path cannot be empty"},
		{name: "non-existent file", path: filepath.Join(dir, "missing.pdf"), wantMessage: "does not exist"},
		{name: "directory", path: dir, wantMessage: "is a directory"},
		{name: "wrong extension", path: notPDF, wantMessage: "not a PDF"},
		{name: "empty file", path: empty, wantMessage: "file is empty"},
		{name: "not a pdf", path: garbage, wantMessage: "invalid PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateFile(PDFValidateFileRequest{Path: tt.path})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Valid != tt.expectValid {
				t.Errorf("expected Valid=%v but got %v (%s)", tt.expectValid, result.Valid, result.Message)
			}
			if result.Path != tt.path {
				t.Errorf("expected Path=%s but got %s", tt.path, result.Path)
			}
			if tt.wantMessage != "" && !strings.Contains(result.Message, tt.wantMessage) {
				t.Errorf("expected message containing %q, got %q", tt.wantMessage, result.Message)
			}
			if got := validator.IsValidPDF(tt.path); got != tt.expectValid {
				t.Errorf("IsValidPDF() = %v, want %v", got, tt.expectValid)
			}
		})
	}
}

func TestValidator_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	template := pdftest.Template()
	validator := NewValidator(int64(len(template) - 1))

	path := writeFile(t, dir, "form.pdf", template)
	err := validator.ValidateTemplateFile(path)
	if err == nil || !strings.Contains(err.Error(), "file too large") {
		t.Errorf("ValidateTemplateFile() error = %v, want size error", err)
	}

	if err := validator.ValidateInputFile(writeFile(t, dir, "rows.csv", []byte("Client\nA\n"))); err != nil {
		t.Errorf("ValidateInputFile() unexpected error: %v", err)
	}
	if err := validator.ValidateSize("input", 0); err == nil {
		t.Error("ValidateSize() accepted an empty payload")
	}
}

func TestValidator_VerifyArtifact(t *testing.T) {
	validator := NewValidator(1024 * 1024)
	multi := pdftest.FormTemplate(pdftest.TemplateOptions{Fields: pdftest.StandardFields, Pages: 3})

	if err := validator.VerifyArtifact(multi, 3); err != nil {
		t.Errorf("VerifyArtifact() unexpected error: %v", err)
	}
	if err := validator.VerifyArtifact(multi, 2); err == nil {
		t.Error("VerifyArtifact() accepted a wrong page count")
	}
	if err := validator.VerifyArtifact([]byte("junk"), 1); err == nil {
		t.Error("VerifyArtifact() accepted junk bytes")
	}
}
