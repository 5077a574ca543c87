package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// PDFError is the typed error carried through the fill-and-merge pipeline
type PDFError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Stage     string    `json:"stage,omitempty"`
	Row       int       `json:"row,omitempty"` // 1-based input row, 0 when not row-scoped
	Field     string    `json:"field,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// ErrorType categorizes pipeline failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInputFormat
	ErrorTypeTemplateLoad
	ErrorTypeFieldNotFound
	ErrorTypeFill
	ErrorTypeBatch
)

// ErrorSeverity indicates how a pipeline stage must react to an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Stages reported by fill and batch errors.
const (
	StageParse     = "parse"
	StageMap       = "map"
	StageLoad      = "load"
	StageFill      = "fill"
	StageFlatten   = "flatten"
	StageSerialize = "serialize"
	StageReload    = "reload"
	StageMerge     = "merge"
	StageVerify    = "verify"
	StageWrite     = "write"
)

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Row > 0 {
		msg = fmt.Sprintf("[%s] row %d: %s", e.Type.String(), e.Row, e.Message)
	}
	if e.Stage != "" {
		msg += " (stage: " + e.Stage + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInputFormat:
		return "INPUT_FORMAT"
	case ErrorTypeTemplateLoad:
		return "TEMPLATE_LOAD"
	case ErrorTypeFieldNotFound:
		return "FIELD_NOT_FOUND"
	case ErrorTypeFill:
		return "FILL"
	case ErrorTypeBatch:
		return "BATCH"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeFieldNotFound:
		return SeverityWarning
	case ErrorTypeFill:
		return SeverityError
	case ErrorTypeInputFormat, ErrorTypeTemplateLoad, ErrorTypeBatch:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether processing may continue past an error of this type
func (et ErrorType) IsRecoverable() bool {
	return et.GetSeverity() <= SeverityWarning
}

// NewInputFormatError reports tabular input that cannot be parsed
func NewInputFormatError(message string, err error) *PDFError {
	return &PDFError{
		Type:      ErrorTypeInputFormat,
		Message:   message,
		Stage:     StageParse,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// NewTemplateLoadError reports a template that fails to decode
func NewTemplateLoadError(path string, err error) *PDFError {
	return &PDFError{
		Type:      ErrorTypeTemplateLoad,
		Message:   "template could not be loaded",
		Stage:     StageLoad,
		FilePath:  path,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// NewFieldNotFound records a template field missing from a document instance
func NewFieldNotFound(field string) *PDFError {
	return &PDFError{
		Type:      ErrorTypeFieldNotFound,
		Message:   fmt.Sprintf("field %q not found on document", field),
		Field:     field,
		Timestamp: time.Now(),
	}
}

// NewFillError reports a structural failure while producing one document instance
func NewFillError(stage string, err error) *PDFError {
	return &PDFError{
		Type:      ErrorTypeFill,
		Message:   "document fill failed",
		Stage:     stage,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// NewBatchError wraps the failure that aborted a batch at the given 1-based row.
// The stage is taken from a wrapped PDFError when the caller passes none.
func NewBatchError(row int, stage string, err error) *PDFError {
	if stage == "" {
		var inner *PDFError
		if stderrors.As(err, &inner) {
			stage = inner.Stage
		}
	}
	return &PDFError{
		Type:      ErrorTypeBatch,
		Message:   "batch aborted",
		Stage:     stage,
		Row:       row,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// IsType reports whether err, or anything it wraps, is a PDFError of type t
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var pe *PDFError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Type == t {
			return true
		}
		err = pe.Err
	}
	return false
}

// RowOf returns the failing row recorded on a batch error, or 0
func RowOf(err error) int {
	var pe *PDFError
	for stderrors.As(err, &pe) {
		if pe.Row > 0 {
			return pe.Row
		}
		err = pe.Err
	}
	return 0
}
