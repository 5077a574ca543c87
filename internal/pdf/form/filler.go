package form

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfform "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/a3tai/pdf-batch-fill/internal/fieldmap"
	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
)

// FieldStatus is the outcome of assigning one value
type FieldStatus string

const (
	FieldApplied  FieldStatus = "applied"
	FieldNotFound FieldStatus = "not_found"
	FieldSkipped  FieldStatus = "skipped" // resolved to a non-text field
)

// FieldResult records what happened to one value during a fill
type FieldResult struct {
	Name    string
	Status  FieldStatus
	Widgets int
	Warning *pdferrors.PDFError
}

// Instance is one filled, flattened document
type Instance struct {
	Data   []byte
	Pages  int
	Fields []FieldResult
}

// Warnings returns the per-field warnings recorded during the fill
func (i *Instance) Warnings() []*pdferrors.PDFError {
	var out []*pdferrors.PDFError
	for _, f := range i.Fields {
		if f.Warning != nil {
			out = append(out, f.Warning)
		}
	}
	return out
}

// Filler produces document instances from a template
type Filler struct {
	template *Template
	conf     *model.Configuration
	logger   zerolog.Logger
}

// Option configures a Filler
type Option func(*Filler)

// WithLogger sets the logger used for field warnings
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Filler) {
		f.logger = logger
	}
}

// WithConfiguration pins the pdfcpu configuration. By default every fill gets
// a fresh one from NewConfiguration, since pdfcpu records per-command state on it.
func WithConfiguration(conf *model.Configuration) Option {
	return func(f *Filler) {
		f.conf = conf
	}
}

// NewFiller creates a filler bound to a loaded template
func NewFiller(template *Template, opts ...Option) *Filler {
	f := &Filler{
		template: template,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Template returns the template the filler is bound to
func (f *Filler) Template() *Template {
	return f.template
}

// Fill loads a private copy of the template, applies values, flattens and
// serializes it. Fields that cannot be found are recorded and skipped; any
// structural failure is returned as a fill error.
func (f *Filler) Fill(ctx context.Context, values fieldmap.FieldValueMap) (*Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageLoad, err)
	}

	conf := f.conf
	if conf == nil {
		conf = NewConfiguration()
	}

	// Form filling needs the validated context: widget annotations per page,
	// the form dictionary and its cached fonts.
	conf.Cmd = model.FILLFORMFIELDS
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(f.template.data), conf)
	if err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageLoad, fmt.Errorf("failed to read PDF context: %w", err))
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageLoad, fmt.Errorf("failed to ensure page count: %w", err))
	}

	fields, _, err := collectFields(pctx)
	if err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageFill, err)
	}

	results, err := f.apply(pctx, newFieldIndex(fields), values)
	if err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageFill, err)
	}

	if err := flatten(pctx); err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageFlatten, err)
	}

	if err := api.OptimizeContext(pctx); err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageSerialize, fmt.Errorf("failed to optimize document: %w", err))
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return nil, pdferrors.NewFillError(pdferrors.StageSerialize, fmt.Errorf("failed to write document: %w", err))
	}

	return &Instance{
		Data:   buf.Bytes(),
		Pages:  pctx.PageCount,
		Fields: results,
	}, nil
}

// apply resolves each value against the template fields, records the
// outcome and has pdfcpu set /V and render the appearance of every match.
func (f *Filler) apply(pctx *model.Context, idx *fieldIndex, values fieldmap.FieldValueMap) ([]FieldResult, error) {
	results := make([]FieldResult, 0, len(values))
	fill := make(map[string]string, len(values))

	for _, fv := range values {
		matches := idx.lookup(fv.Name)
		if len(matches) == 0 {
			warning := pdferrors.NewFieldNotFound(fv.Name)
			f.logger.Warn().
				Str("field", fv.Name).
				Str("template", f.template.name).
				Msg("field not found on document, skipping")
			results = append(results, FieldResult{Name: fv.Name, Status: FieldNotFound, Warning: warning})
			continue
		}

		result := FieldResult{Name: fv.Name, Status: FieldSkipped}
		for _, field := range matches {
			if field.Type != "Tx" && field.Type != "" {
				f.logger.Debug().
					Str("field", field.FullName).
					Str("type", field.Type).
					Msg("field is not a text field, skipping")
				continue
			}
			fill[field.FullName] = fv.Value
			result.Widgets += len(field.Widgets)
			result.Status = FieldApplied
		}
		results = append(results, result)
	}

	if len(fill) > 0 {
		if _, _, err := pdfform.FillForm(pctx, fillDetails(fill), nil, pdfform.JSON); err != nil {
			return nil, fmt.Errorf("failed to fill form: %w", err)
		}
	}
	delete(pctx.Form, "NeedAppearances")
	return results, nil
}

// fillDetails answers pdfcpu's per-field queries from values keyed by fully
// qualified field name. Only text fields are filled.
func fillDetails(fill map[string]string) func(id, name string, ft pdfform.FieldType, format pdfform.DataFormat) ([]string, bool, bool) {
	return func(_, name string, ft pdfform.FieldType, _ pdfform.DataFormat) ([]string, bool, bool) {
		if ft != pdfform.FTText {
			return nil, false, false
		}
		v, ok := fill[name]
		if !ok {
			return nil, false, false
		}
		return []string{v}, false, true
	}
}
