package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Validator checks templates, inputs and merged artifacts
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new validator with the specified size limit
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile reports whether a file is a readable PDF. Validation failures
// are carried in the result, not returned as errors.
func (v *Validator) ValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	result := &PDFValidateFileResult{
		Path:  req.Path,
		Valid: false,
	}

	if err := v.ValidateTemplateFile(req.Path); err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // Return result with validation error, not a processing error
	}

	result.Valid = true
	return result, nil
}

// ValidateTemplateFile checks that filePath is a PDF within the size limit
// that an independent reader can open
func (v *Validator) ValidateTemplateFile(filePath string) error {
	info, err := v.statFile(filePath)
	if err != nil {
		return err
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}
	if err := v.checkSize(filePath, info.Size()); err != nil {
		return err
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return fmt.Errorf("PDF has no pages: %s", filePath)
	}
	return nil
}

// ValidateInputFile checks that filePath is a non-empty regular file within the size limit
func (v *Validator) ValidateInputFile(filePath string) error {
	info, err := v.statFile(filePath)
	if err != nil {
		return err
	}
	return v.checkSize(filePath, info.Size())
}

// ValidateSize checks an in-memory payload against the size limit
func (v *Validator) ValidateSize(name string, size int64) error {
	return v.checkSize(name, size)
}

// VerifyArtifact re-opens a merged document with an independent reader and
// checks its page count
func (v *Validator) VerifyArtifact(data []byte, wantPages int) error {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("merged PDF cannot be opened: %w", err)
	}
	if got := r.NumPage(); got != wantPages {
		return fmt.Errorf("merged PDF has %d pages, expected %d", got, wantPages)
	}
	return nil
}

// IsValidPDF performs a quick check to see if a file is a valid PDF
func (v *Validator) IsValidPDF(filePath string) bool {
	return v.ValidateTemplateFile(filePath) == nil
}

func (v *Validator) statFile(filePath string) (os.FileInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	return info, nil
}

func (v *Validator) checkSize(name string, size int64) error {
	if size == 0 {
		return fmt.Errorf("file is empty: %s", name)
	}
	if size > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", size, v.maxFileSize)
	}
	return nil
}
