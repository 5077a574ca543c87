package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a3tai/pdf-batch-fill/internal/fieldmap"
)

// Kinds reported for working directory files.
const (
	KindTemplate = "template"
	KindInput    = "input"
)

// DirectoryScanner lists templates and inputs under a directory with limits
type DirectoryScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

// ScanResult represents the result of a directory scan
type ScanResult struct {
	Files     []FileInfo
	ScanTime  time.Duration
	Truncated bool
}

// NewDirectoryScanner creates a scanner bounded by depth, file count and time
func NewDirectoryScanner(maxDepth, fileLimit int, timeLimit time.Duration) *DirectoryScanner {
	return &DirectoryScanner{
		maxDepth:  maxDepth,
		fileLimit: fileLimit,
		timeLimit: timeLimit,
	}
}

// ScanDirectory walks root, skipping hidden entries and symlinks
func (s *DirectoryScanner) ScanDirectory(ctx context.Context, root string) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{Files: []FileInfo{}}
	err := s.scan(ctx, root, 0, start, result)
	result.ScanTime = time.Since(start)
	return result, err
}

func (s *DirectoryScanner) scan(ctx context.Context, dir string, depth int, start time.Time, result *ScanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxDepth > 0 && depth >= s.maxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // Skip directories we can't read
	}

	for _, entry := range entries {
		if s.fileLimit > 0 && len(result.Files) >= s.fileLimit ||
			s.timeLimit > 0 && time.Since(start) > s.timeLimit {
			result.Truncated = true
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") || entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := s.scan(ctx, path, depth+1, start, result); err != nil {
				return err
			}
			continue
		}

		kind := fileKind(entry.Name())
		if kind == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result.Files = append(result.Files, FileInfo{
			Path:         path,
			Name:         entry.Name(),
			Kind:         kind,
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}
	return nil
}

func fileKind(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindTemplate
	case ".csv", ".tsv", ".txt":
		return KindInput
	}
	return ""
}

// ServerInfo returns the server's capabilities, mapping rules and the
// templates and inputs found in the working directory
func (s *Service) ServerInfo(ctx context.Context, _ ServerInfoRequest, serverName, version string) (*ServerInfoResult, error) {
	scanCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	scanner := NewDirectoryScanner(5, 100, 3*time.Second)
	scan, err := scanner.ScanDirectory(scanCtx, s.Directory())
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	if scan == nil {
		scan = &ScanResult{Files: []FileInfo{}}
	}

	mappings := make([]Mapping, 0, len(fieldmap.Correspondences)+1)
	for _, c := range fieldmap.Correspondences {
		mappings = append(mappings, Mapping{Column: c.Column, Field: c.Field})
	}
	mappings = append(mappings, Mapping{
		Column: fmt.Sprintf("any column containing %q (non-empty values joined with %q)",
			fieldmap.StatesMarker, fieldmap.StatesSeparator),
		Field: fieldmap.FieldStates,
	})

	return &ServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  s.Directory(),
		DefaultOutput:     s.outputPath,
		MaxFileSize:       s.maxFileSize,
		ExpectedFields:    fieldmap.TemplateFields(),
		ColumnMappings:    mappings,
		AvailableTools:    AvailableTools(),
		DirectoryContents: scan.Files,
		UsageGuidance:     s.usageGuidance(),
	}, nil
}

// AvailableTools describes the MCP tools the server registers
func AvailableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "batch_fill",
			Description: "Fill a PDF form template once per input row and merge the results into one PDF",
			Usage: "Use this tool to produce control copies: every row of the delimited input becomes one " +
				"filled, flattened copy of the template, appended in row order.",
			Parameters: "template (required): path to the form template PDF, " +
				"input (required): path to the delimited input with a header row, " +
				"output (optional): merged PDF path, " +
				"delimiter (optional): single input delimiter character, default ','",
		},
		{
			Name:        "template_fields",
			Description: "List the fillable fields of a PDF form template",
			Usage:       "Use this tool before batch_fill to check that the template carries the fields the rows fill.",
			Parameters:  "path (required): path to the form template PDF",
		},
		{
			Name:        "pdf_validate_file",
			Description: "Validate if a file is a readable PDF",
			Usage:       "Use this tool when a template fails to load to check whether the file is a PDF at all.",
			Parameters:  "path (required): path to the PDF file",
		},
		{
			Name:        "batch_server_info",
			Description: "Get server information, column mappings and available templates and inputs",
			Usage:       "Use this tool first to discover files in the working directory and how columns map to fields.",
			Parameters:  "none",
		},
	}
}

func (s *Service) usageGuidance() string {
	maxFileSizeMB := s.maxFileSize / (1024 * 1024)

	return fmt.Sprintf(`PDF Batch Fill Usage Guide:

1. DISCOVER FILES:
   - Use 'batch_server_info' to list templates (.pdf) and inputs (.csv, .tsv, .txt)

2. CHECK THE TEMPLATE:
   - Use 'template_fields' and look at 'missing': fields listed there are left
     unfilled and reported as warnings for every row

3. RUN THE BATCH:
   - Use 'batch_fill' with the template and input paths
   - The input needs a header row; unrecognized columns are ignored
   - The first failing row aborts the batch and no output is written

IMPORTANT NOTES:
- Relative paths are resolved against the working directory
- Paths outside the working directory are rejected
- Templates and inputs may be up to %dMB`, maxFileSizeMB)
}
