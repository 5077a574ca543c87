package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/a3tai/pdf-batch-fill/internal/batch"
	"github.com/a3tai/pdf-batch-fill/internal/fieldmap"
	"github.com/a3tai/pdf-batch-fill/internal/logging"
	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
	"github.com/a3tai/pdf-batch-fill/internal/pdf/form"
	"github.com/a3tai/pdf-batch-fill/internal/pdf/security"
	"github.com/a3tai/pdf-batch-fill/internal/tabular"
)

const outputFilePerm = 0o644

// Options configures a Service
type Options struct {
	MaxFileSize int64
	Directory   string
	OutputPath  string // artifact path used when a request names none
	Restrict    bool   // confine request paths to Directory
	Verify      bool   // re-open each merged artifact before returning it
	Logger      zerolog.Logger
}

// RunOptions configures one batch run
type RunOptions struct {
	RunID      string
	OnProgress func(batch.Snapshot)
}

// Service orchestrates template loading, input parsing, the batch run and
// artifact output
type Service struct {
	maxFileSize   int64
	outputPath    string
	restrict      bool
	verify        bool
	validator     *Validator
	pathValidator *security.PathValidator
	logger        zerolog.Logger
}

// NewService creates a new service
func NewService(opts Options) (*Service, error) {
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("maximum file size must be positive")
	}
	pathValidator, err := security.NewPathValidator(opts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	return &Service{
		maxFileSize:   opts.MaxFileSize,
		outputPath:    opts.OutputPath,
		restrict:      opts.Restrict,
		verify:        opts.Verify,
		validator:     NewValidator(opts.MaxFileSize),
		pathValidator: pathValidator,
		logger:        opts.Logger,
	}, nil
}

// ResolvePath makes path absolute against the working directory. When the
// service is restricted the result must stay inside it.
func (s *Service) ResolvePath(path string) (string, error) {
	if s.restrict {
		resolved, err := s.pathValidator.Resolve(path)
		if err != nil {
			return "", fmt.Errorf("security validation failed: %w", err)
		}
		return resolved, nil
	}
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.pathValidator.Root(), path)
	}
	return filepath.Abs(path)
}

// LoadTemplate validates and loads a form template. Expected fields the
// template lacks are logged; they become per-row warnings during a run.
func (s *Service) LoadTemplate(path string) (*form.Template, error) {
	resolved, err := s.ResolvePath(path)
	if err != nil {
		return nil, pdferrors.NewTemplateLoadError(path, err)
	}
	if err := s.validator.ValidateTemplateFile(resolved); err != nil {
		return nil, pdferrors.NewTemplateLoadError(resolved, err)
	}

	tpl, err := form.LoadTemplateFile(resolved)
	if err != nil {
		return nil, err
	}

	if missing := tpl.MissingFields(fieldmap.TemplateFields()); len(missing) > 0 {
		s.logger.Warn().
			Str("template", resolved).
			Strs("missing", missing).
			Msg("template lacks expected fields")
	}
	s.logger.Debug().
		Str("template", resolved).
		Int("pages", tpl.Pages()).
		Strs("fields", tpl.Fields()).
		Msg("template loaded")
	return tpl, nil
}

// ReadInput parses the delimited input file at path
func (s *Service) ReadInput(path string, comma rune) (*tabular.Table, error) {
	resolved, err := s.ResolvePath(path)
	if err != nil {
		return nil, pdferrors.NewInputFormatError("input path rejected", err)
	}
	if err := s.validator.ValidateInputFile(resolved); err != nil {
		return nil, pdferrors.NewInputFormatError("input file rejected", err)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, pdferrors.NewInputFormatError("input file cannot be opened", err)
	}
	defer f.Close()

	return s.ParseInput(f, comma)
}

// ParseInput parses delimited input from r, enforcing the size limit
func (s *Service) ParseInput(r io.Reader, comma rune) (*tabular.Table, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, pdferrors.NewInputFormatError("input cannot be read", err)
	}
	if err := s.validator.ValidateSize("input", int64(len(data))); err != nil {
		return nil, pdferrors.NewInputFormatError("input rejected", err)
	}
	return tabular.Parse(bytes.NewReader(data), tabular.Options{Comma: comma})
}

// Run fills tpl once per row of table and returns the merged artifact
func (s *Service) Run(ctx context.Context, tpl *form.Template, table *tabular.Table, opts RunOptions) (*BatchFillResult, []byte, error) {
	runID := opts.RunID
	if runID == "" {
		runID = logging.RunIDFromContext(ctx)
	}
	if runID == "" {
		runID = logging.NewRunID()
	}
	logger := logging.WithRun(s.logger, runID)

	filler := form.NewFiller(tpl, form.WithLogger(logger))
	mergerOpts := []batch.MergerOption{batch.WithLogger(logger)}
	if opts.OnProgress != nil {
		mergerOpts = append(mergerOpts, batch.WithProgress(opts.OnProgress))
	}
	if s.verify {
		mergerOpts = append(mergerOpts, batch.WithVerifier(s.validator.VerifyArtifact))
	}

	res, err := batch.NewMerger(filler, mergerOpts...).Run(ctx, table)
	if err != nil {
		return nil, nil, err
	}

	result := &BatchFillResult{
		RunID:      runID,
		Rows:       res.Rows,
		Pages:      res.Pages,
		PageCounts: res.PageCounts,
		Size:       int64(len(res.Artifact)),
		DurationMS: res.Duration.Milliseconds(),
		Warnings:   fieldWarnings(res.Warnings),
		Verified:   s.verify,
	}

	return result, res.Artifact, nil
}

// FillBatch runs a complete batch from files and writes the merged artifact
func (s *Service) FillBatch(ctx context.Context, req BatchFillRequest, opts RunOptions) (*BatchFillResult, error) {
	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = s.outputPath
	}
	if outputPath == "" {
		return nil, fmt.Errorf("no output path given")
	}
	resolvedOutput, err := s.ResolvePath(outputPath)
	if err != nil {
		return nil, err
	}

	tpl, err := s.LoadTemplate(req.TemplatePath)
	if err != nil {
		return nil, err
	}

	comma := req.Delimiter
	if comma == 0 {
		comma = ','
	}
	table, err := s.ReadInput(req.InputPath, comma)
	if err != nil {
		return nil, err
	}

	result, artifact, err := s.Run(ctx, tpl, table, opts)
	if err != nil {
		return nil, err
	}

	if err := WriteFileAtomic(resolvedOutput, artifact); err != nil {
		return nil, pdferrors.NewBatchError(0, pdferrors.StageWrite, err)
	}
	result.OutputPath = resolvedOutput

	s.logger.Info().
		Str("run_id", result.RunID).
		Str("output", resolvedOutput).
		Int("rows", result.Rows).
		Int("pages", result.Pages).
		Msg("merged output written")
	return result, nil
}

// TemplateFields lists the fields of the template at req.Path
func (s *Service) TemplateFields(req TemplateFieldsRequest) (*TemplateFieldsResult, error) {
	tpl, err := s.LoadTemplate(req.Path)
	if err != nil {
		return nil, err
	}
	return DescribeTemplate(tpl), nil
}

// DescribeTemplate summarizes a loaded template against the mapped fields
func DescribeTemplate(tpl *form.Template) *TemplateFieldsResult {
	expected := fieldmap.TemplateFields()
	return &TemplateFieldsResult{
		Path:     tpl.Name(),
		Pages:    tpl.Pages(),
		Fields:   tpl.Fields(),
		Expected: expected,
		Missing:  tpl.MissingFields(expected),
	}
}

// PDFValidateFile performs validation on a PDF file
func (s *Service) PDFValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	resolved, err := s.ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	req.Path = resolved
	return s.validator.ValidateFile(req)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// Directory returns the working directory
func (s *Service) Directory() string {
	return s.pathValidator.Root()
}

// Logger returns the service logger
func (s *Service) Logger() zerolog.Logger {
	return s.logger
}

// DefaultOutputPath returns the artifact path used when a request names none
func (s *Service) DefaultOutputPath() string {
	return s.outputPath
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partial artifact
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pdf-batch-fill-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Chmod(tmpName, outputFilePerm); err != nil {
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func fieldWarnings(errs []*pdferrors.PDFError) []FieldWarning {
	if len(errs) == 0 {
		return nil
	}
	out := make([]FieldWarning, len(errs))
	for i, e := range errs {
		out[i] = FieldWarning{Row: e.Row, Field: e.Field, Message: e.Message}
	}
	return out
}
