// Package form fills AcroForm templates and flattens the result.
//
// A Template holds the immutable template bytes. Every Fill decodes its own
// pdfcpu context from those bytes, so concurrent or repeated fills never share
// mutable state and the template itself is never modified.
package form

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
)

// NewConfiguration returns the pdfcpu configuration used for reading and
// writing documents: relaxed validation and classic xref output.
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Template is a loaded, read-only form template
type Template struct {
	name   string
	data   []byte
	pages  int
	fields []string
}

// LoadTemplate decodes data once to validate it and discover its fields.
// The bytes are copied; later changes to data do not affect the template.
func LoadTemplate(name string, data []byte) (*Template, error) {
	if len(data) == 0 {
		return nil, pdferrors.NewTemplateLoadError(name, fmt.Errorf("template is empty"))
	}

	owned := append([]byte(nil), data...)
	ctx, err := api.ReadContext(bytes.NewReader(owned), NewConfiguration())
	if err != nil {
		return nil, pdferrors.NewTemplateLoadError(name, fmt.Errorf("failed to read PDF context: %w", err))
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.NewTemplateLoadError(name, fmt.Errorf("failed to ensure page count: %w", err))
	}

	fields, _, err := collectFields(ctx)
	if err != nil {
		return nil, pdferrors.NewTemplateLoadError(name, err)
	}

	names := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.FullName == "" || seen[f.FullName] {
			continue
		}
		seen[f.FullName] = true
		names = append(names, f.FullName)
	}

	return &Template{
		name:   name,
		data:   owned,
		pages:  ctx.PageCount,
		fields: names,
	}, nil
}

// LoadTemplateFile reads and loads a template from disk
func LoadTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pdferrors.NewTemplateLoadError(path, err)
	}
	return LoadTemplate(path, data)
}

// Name returns the name the template was loaded under
func (t *Template) Name() string {
	return t.name
}

// Pages returns the template page count
func (t *Template) Pages() int {
	return t.pages
}

// Size returns the template size in bytes
func (t *Template) Size() int {
	return len(t.data)
}

// Fields returns the fully qualified field names, in document order
func (t *Template) Fields() []string {
	return append([]string(nil), t.fields...)
}

// HasField reports whether a field resolves by full or partial name
func (t *Template) HasField(name string) bool {
	for _, f := range t.fields {
		if f == name || lastSegment(f) == name {
			return true
		}
	}
	return false
}

// MissingFields returns the names in want that the template cannot resolve
func (t *Template) MissingFields(want []string) []string {
	var missing []string
	for _, name := range want {
		if !t.HasField(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func lastSegment(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
