package errors

import (
	"fmt"
	"sync"
)

// ErrorCollection gathers the non-fatal errors raised across a batch
type ErrorCollection struct {
	mu       sync.Mutex
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate list based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err == nil {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	if err.Type.GetSeverity() <= SeverityWarning {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// AddRow records err against a 1-based input row
func (ec *ErrorCollection) AddRow(row int, err *PDFError) {
	if err == nil {
		return
	}
	err.Row = row
	ec.Add(err)
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.Errors), len(ec.Warnings)
}

// WarningList returns a snapshot of the recorded warnings
func (ec *ErrorCollection) WarningList() []*PDFError {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]*PDFError(nil), ec.Warnings...)
}

// Summary returns a one-line summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
