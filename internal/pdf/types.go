package pdf

// FileInfo represents a template or input file in the working directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Kind         string `json:"kind"` // "template" or "input"
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// BatchFillRequest represents a request to fill a template once per input row
type BatchFillRequest struct {
	TemplatePath string `json:"template_path"`
	InputPath    string `json:"input_path"`
	OutputPath   string `json:"output_path,omitempty"` // defaults to the configured output
	Delimiter    rune   `json:"delimiter,omitempty"`   // defaults to ','
}

// PDFValidateFileRequest represents a request to validate a PDF file
type PDFValidateFileRequest struct {
	Path string `json:"path"`
}

// TemplateFieldsRequest represents a request to list a template's fields
type TemplateFieldsRequest struct {
	Path string `json:"path"`
}

// ServerInfoRequest represents a request to get server information and capabilities
type ServerInfoRequest struct {
	// No parameters needed for server info
}

// Response Types

// FieldWarning is a non-fatal problem recorded for one row
type FieldWarning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BatchFillResult represents a completed batch
type BatchFillResult struct {
	RunID      string         `json:"run_id"`
	OutputPath string         `json:"output_path,omitempty"`
	Rows       int            `json:"rows"`
	Pages      int            `json:"pages"`
	PageCounts []int          `json:"page_counts"`
	Size       int64          `json:"size"`
	Verified   bool           `json:"verified"`
	DurationMS int64          `json:"duration_ms"`
	Warnings   []FieldWarning `json:"warnings,omitempty"`
}

// PDFValidateFileResult represents the result of PDF file validation
type PDFValidateFileResult struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// TemplateFieldsResult lists the fillable fields of a template
type TemplateFieldsResult struct {
	Path     string   `json:"path"`
	Pages    int      `json:"pages"`
	Fields   []string `json:"fields"`
	Expected []string `json:"expected"`          // fields the mapper fills
	Missing  []string `json:"missing,omitempty"` // expected fields the template lacks
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	DefaultOutput     string     `json:"default_output"`
	MaxFileSize       int64      `json:"max_file_size"`
	ExpectedFields    []string   `json:"expected_fields"`
	ColumnMappings    []Mapping  `json:"column_mappings"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	UsageGuidance     string     `json:"usage_guidance"`
}

// Mapping describes how an input column reaches a template field
type Mapping struct {
	Column string `json:"column"`
	Field  string `json:"field"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
