package form

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxFieldDepth bounds the field tree walk; deeper trees are treated as cyclic.
const maxFieldDepth = 32

// formField is a terminal AcroForm field and the widgets that display it
type formField struct {
	FullName    string
	PartialName string
	Type        string
	Dict        types.Dict
	Widgets     []types.Dict
}

// collectFields walks the AcroForm field tree. A document without an
// AcroForm has no fields; that is not an error.
func collectFields(ctx *model.Context) ([]*formField, types.Dict, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, acroFormDict, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, acroFormDict, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	var fields []*formField
	for _, fieldRef := range fieldsArray {
		if err := walkField(ctx, fieldRef, "", "", 0, &fields); err != nil {
			return nil, acroFormDict, err
		}
	}
	return fields, acroFormDict, nil
}

func walkField(ctx *model.Context, obj types.Object, parentName, parentType string, depth int, out *[]*formField) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("field tree deeper than %d levels under %q", maxFieldDepth, parentName)
	}

	fieldDict, err := ctx.DereferenceDict(obj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil
	}

	partial := stringEntry(ctx, fieldDict, "T")
	fullName := partial
	if parentName != "" {
		fullName = parentName
		if partial != "" {
			fullName = parentName + "." + partial
		}
	}

	fieldType := parentType
	if ft := nameEntry(ctx, fieldDict, "FT"); ft != "" {
		fieldType = ft
	}

	kidsObj, found := fieldDict.Find("Kids")
	if !found {
		*out = append(*out, &formField{
			FullName:    fullName,
			PartialName: partial,
			Type:        fieldType,
			Dict:        fieldDict,
			Widgets:     []types.Dict{fieldDict},
		})
		return nil
	}

	kids, err := ctx.DereferenceArray(kidsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Kids of %q: %w", fullName, err)
	}

	var widgets []types.Dict
	for _, kid := range kids {
		kidDict, err := ctx.DereferenceDict(kid)
		if err != nil || kidDict == nil {
			continue
		}
		if _, named := kidDict.Find("T"); named {
			if err := walkField(ctx, kid, fullName, fieldType, depth+1, out); err != nil {
				return err
			}
			continue
		}
		widgets = append(widgets, kidDict)
	}

	if len(widgets) > 0 {
		*out = append(*out, &formField{
			FullName:    fullName,
			PartialName: partial,
			Type:        fieldType,
			Dict:        fieldDict,
			Widgets:     widgets,
		})
	}
	return nil
}

// fieldIndex resolves names to fields. Fully qualified names win over
// partial names; both are exact and case-sensitive.
type fieldIndex struct {
	byFull    map[string][]*formField
	byPartial map[string][]*formField
}

func newFieldIndex(fields []*formField) *fieldIndex {
	idx := &fieldIndex{
		byFull:    make(map[string][]*formField, len(fields)),
		byPartial: make(map[string][]*formField, len(fields)),
	}
	for _, f := range fields {
		idx.byFull[f.FullName] = append(idx.byFull[f.FullName], f)
		if f.PartialName != "" {
			idx.byPartial[f.PartialName] = append(idx.byPartial[f.PartialName], f)
		}
	}
	return idx
}

func (idx *fieldIndex) lookup(name string) []*formField {
	if fs := idx.byFull[name]; len(fs) > 0 {
		return fs
	}
	return idx.byPartial[name]
}

func stringEntry(ctx *model.Context, d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func nameEntry(ctx *model.Context, d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	n, err := ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(n)
}

func numberArray(ctx *model.Context, d types.Dict, key string, want int) ([]float64, bool) {
	obj, found := d.Find(key)
	if !found {
		return nil, false
	}
	arr, err := ctx.DereferenceArray(obj)
	if err != nil || len(arr) != want {
		return nil, false
	}
	nums := make([]float64, want)
	for i, o := range arr {
		f, err := ctx.DereferenceNumber(o)
		if err != nil {
			return nil, false
		}
		nums[i] = f
	}
	return nums, true
}

func intEntry(ctx *model.Context, d types.Dict, key string) int {
	obj, found := d.Find(key)
	if !found {
		return 0
	}
	i, err := ctx.DereferenceInteger(obj)
	if err != nil || i == nil {
		return 0
	}
	return int(*i)
}
